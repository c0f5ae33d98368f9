package auth

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-IP rate limiting configuration for the protocol
// endpoints.
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size allowed per IP (default 2x Rate)
	Burst int

	// CleanupInterval is how often idle limiters are evicted
	CleanupInterval time.Duration

	// TrustProxy indicates whether to trust X-Forwarded-For and X-Real-IP
	// headers. Only set behind a trusted proxy.
	TrustProxy bool
}

func (c RateLimitConfig) effectiveBurst() int {
	if c.Burst > 0 {
		return c.Burst
	}
	return c.Rate * 2
}

// rateLimiter keeps a token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
	trust    bool
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(config RateLimitConfig, logger *slog.Logger) *rateLimiter {
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = DefaultRateLimitCleanupInterval
	}

	rl := &rateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Limit(config.Rate),
		burst:    config.effectiveBurst(),
		trust:    config.TrustProxy,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go rl.evictIdle(interval)

	return rl
}

// allow reports whether a request from the given IP may proceed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// evictIdle drops limiters that have not been used recently.
func (rl *rateLimiter) evictIdle(interval time.Duration) {
	defer close(rl.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-InactiveLimiterWindow)
			for ip, entry := range rl.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.stopCh)
	<-rl.doneCh
}

// middleware applies the limiter in front of a handler.
func (rl *rateLimiter) middleware(next http.Handler, writeError func(http.ResponseWriter, *Error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, rl.trust)

		if !rl.allow(ip) {
			rl.logger.Warn("Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, NewError("rate_limit_exceeded",
				"rate limit exceeded, please try again later",
				http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request. Proxy headers
// are honored only when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Take the first IP if multiple
			for i := 0; i < len(xff); i++ {
				if xff[i] == ',' {
					return xff[:i]
				}
			}
			return xff
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	// RemoteAddr is in "IP:port" format, extract just the IP
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr extracts the IP address from a "host:port" address,
// including bracketed IPv6 forms like "[::1]:8080".
func extractIPFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present, treat the whole string as the host
		return addr
	}
	return host
}
