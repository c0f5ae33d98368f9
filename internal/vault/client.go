package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to the Obsidian Local REST API plugin.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a vault client for the given base URL (e.g.
// https://127.0.0.1:27124) and API key.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("vault base URL cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("vault API key cannot be empty")
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client (used in tests and for
// custom TLS configuration against the plugin's self-signed certificate).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// do performs an authenticated request and maps failure statuses onto the
// closed error kinds. A nil return means the caller owns the response body.
func (c *Client) do(ctx context.Context, op, path string, req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Path: path, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, &Error{Kind: KindNotFound, Op: op, Path: path, Err: fmt.Errorf("not found")}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &Error{Kind: KindAccessDenied, Op: op, Path: path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &Error{
			Kind: KindTransient,
			Op:   op,
			Path: path,
			Err:  fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
}

// noteURL builds the /vault/ URL for a note path, escaping each segment.
func (c *Client) noteURL(path string) string {
	segments := strings.Split(path, "/")
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return c.baseURL + "/vault/" + strings.Join(escaped, "/")
}

// Read returns the raw markdown content of a note.
func (c *Client) Read(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.noteURL(path), nil)
	if err != nil {
		return "", &Error{Kind: KindTransient, Op: "read", Path: path, Err: err}
	}
	req.Header.Set("Accept", "text/markdown")

	resp, doErr := c.do(ctx, "read", path, req)
	if doErr != nil {
		return "", doErr
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransient, Op: "read", Path: path, Err: err}
	}

	return string(content), nil
}

// Write creates or replaces a note with the given markdown content. Parent
// folders are created by the backend as needed.
func (c *Client) Write(ctx context.Context, path, content string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.noteURL(path), strings.NewReader(content))
	if err != nil {
		return &Error{Kind: KindTransient, Op: "write", Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "text/markdown")

	resp, doErr := c.do(ctx, "write", path, req)
	if doErr != nil {
		return doErr
	}
	resp.Body.Close()

	return nil
}

// Exists reports whether a note exists at the given path.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.Read(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// listResponse is the backend's folder listing body.
type listResponse struct {
	Files []string `json:"files"`
}

// List returns the notes and folders directly under the given prefix
// (empty for the vault root). At most limit entries and folders combined are
// returned; Truncated is set when the listing was cut off.
func (c *Client) List(ctx context.Context, prefix string, limit int) (*Listing, error) {
	target := c.baseURL + "/vault/"
	if prefix != "" {
		target = c.noteURL(strings.TrimSuffix(prefix, "/")) + "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "list", Path: prefix, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.do(ctx, "list", prefix, req)
	if doErr != nil {
		return nil, doErr
	}
	defer resp.Body.Close()

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{Kind: KindTransient, Op: "list", Path: prefix, Err: err}
	}

	// The backend marks folders with a trailing slash.
	listing := &Listing{Entries: []string{}, Folders: []string{}}
	sort.Strings(body.Files)
	for _, name := range body.Files {
		if limit > 0 && len(listing.Entries)+len(listing.Folders) >= limit {
			listing.Truncated = true
			break
		}
		if strings.HasSuffix(name, "/") {
			listing.Folders = append(listing.Folders, strings.TrimSuffix(name, "/"))
		} else {
			listing.Entries = append(listing.Entries, name)
		}
	}

	return listing, nil
}

// searchMatch is one context fragment inside a search hit.
type searchMatch struct {
	Context string `json:"context"`
}

// searchHit is the backend's per-note search result.
type searchHit struct {
	Filename string        `json:"filename"`
	Score    float64       `json:"score"`
	Matches  []searchMatch `json:"matches"`
}

// Search runs a simple text search over the vault and returns hits in
// backend relevance order. An optional prefix restricts results to notes
// under that folder; limit caps the number of hits (0 = no cap).
func (c *Client) Search(ctx context.Context, query, prefix string, limit int) ([]SearchResult, error) {
	target := c.baseURL + "/search/simple/?" + url.Values{
		"query":         {query},
		"contextLength": {"120"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "search", Path: prefix, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.do(ctx, "search", prefix, req)
	if doErr != nil {
		return nil, doErr
	}
	defer resp.Body.Close()

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, &Error{Kind: KindTransient, Op: "search", Path: prefix, Err: err}
	}

	results := []SearchResult{}
	for _, hit := range hits {
		if prefix != "" && !strings.HasPrefix(hit.Filename, prefix) {
			continue
		}
		if limit > 0 && len(results) >= limit {
			break
		}

		excerpt := ""
		if len(hit.Matches) > 0 {
			excerpt = hit.Matches[0].Context
		}
		results = append(results, SearchResult{
			Location: hit.Filename,
			Excerpt:  excerpt,
		})
	}

	return results, nil
}
