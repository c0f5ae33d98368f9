package auth

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// dummySecretHash is compared against when a client is unknown so that
// ValidateClientSecret takes the same time whether or not the client exists.
var dummySecretHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("dummy-secret-for-timing"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}
	return h
}()

// ClientStore manages dynamically registered OAuth clients.
type ClientStore struct {
	clients      map[string]*RegisteredClient
	clientsPerIP map[string]int
	mu           sync.RWMutex
	logger       *slog.Logger
}

// NewClientStore creates a new client store.
func NewClientStore(logger *slog.Logger) *ClientStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &ClientStore{
		clients:      make(map[string]*RegisteredClient),
		clientsPerIP: make(map[string]int),
		logger:       logger,
	}
}

// CheckIPLimit returns an error if the IP has reached the registration limit.
func (s *ClientStore) CheckIPLimit(ip string, maxClientsPerIP int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxClientsPerIP <= 0 {
		return nil
	}

	count := s.clientsPerIP[ip]
	if count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d)", ip, count, maxClientsPerIP)
	}

	return nil
}

// Register validates the request and, if every redirect URI is acceptable,
// creates a new client. Registration is all-or-nothing: no state is written
// before validation has passed in full. The returned response carries the
// client secret in plaintext; it is not retrievable afterwards.
func (s *ClientStore) Register(req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, *Error) {
	if len(req.RedirectURIs) == 0 {
		return nil, ErrInvalidRedirectURI("at least one redirect_uri is required")
	}
	for _, uri := range req.RedirectURIs {
		if err := ValidateRedirectURI(uri); err != nil {
			return nil, ErrInvalidRedirectURI(err.Error())
		}
	}

	clientID, err := NewClientID()
	if err != nil {
		s.logger.Error("Failed to generate client ID", "error", err)
		return nil, ErrServerError("failed to generate client credentials")
	}

	clientSecret, err := NewClientSecret()
	if err != nil {
		s.logger.Error("Failed to generate client secret", "error", err)
		return nil, ErrServerError("failed to generate client credentials")
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash client secret", "error", err)
		return nil, ErrServerError("failed to store client credentials")
	}

	client := &RegisteredClient{
		ClientID:         clientID,
		ClientSecretHash: string(secretHash),
		RedirectURIs:     req.RedirectURIs,
		ClientName:       req.ClientName,
		CreatedAt:        time.Now(),
	}

	s.mu.Lock()
	s.clients[clientID] = client
	if clientIP != "" {
		s.clientsPerIP[clientIP]++
	}
	clientsFromIP := s.clientsPerIP[clientIP]
	s.mu.Unlock()

	s.logger.Info("Registered new OAuth client",
		"client_id", clientID,
		"client_name", req.ClientName,
		"client_ip", clientIP,
		"clients_from_ip", clientsFromIP,
		"redirect_uris", req.RedirectURIs,
	)

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret, // Only returned once
		RedirectURIs:            req.RedirectURIs,
		ClientName:              req.ClientName,
		TokenEndpointAuthMethod: "client_secret_post",
	}, nil
}

// GetClient retrieves a registered client by ID.
func (s *ClientStore) GetClient(clientID string) (*RegisteredClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[clientID]
	if !exists {
		return nil, ErrClientNotFound
	}

	return client, nil
}

// Count returns the number of registered clients.
func (s *ClientStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ValidateClientSecret validates a client's secret against its stored hash.
// Unknown clients still pay the bcrypt comparison so the response time does
// not reveal whether the client exists.
func (s *ClientStore) ValidateClientSecret(clientID, clientSecret string) error {
	s.mu.RLock()
	client, exists := s.clients[clientID]
	s.mu.RUnlock()

	if !exists {
		_ = bcrypt.CompareHashAndPassword(dummySecretHash, []byte(clientSecret))
		return ErrClientNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return fmt.Errorf("invalid client secret")
	}

	return nil
}

// ValidateRedirectURI checks that a redirect URI parses and is either an
// https URI or one pointing at a loopback host (any scheme or port).
func ValidateRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must have a scheme: %s", uri)
	}

	if parsed.Scheme == "https" {
		return nil
	}

	if isLoopbackHost(parsed.Hostname()) {
		return nil
	}

	return fmt.Errorf("redirect_uri must use https or a loopback host: %s", uri)
}

// isLoopbackHost checks if a hostname is a recognized loopback address.
func isLoopbackHost(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")
	for _, loopback := range LoopbackHosts {
		if hostname == loopback {
			return true
		}
	}
	return false
}
