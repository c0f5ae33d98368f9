package vault

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeVault is a minimal stand-in for the Obsidian Local REST API.
type fakeVault struct {
	notes  map[string]string
	apiKey string
}

func newFakeVault(apiKey string) *fakeVault {
	return &fakeVault{notes: make(map[string]string), apiKey: apiKey}
}

func (f *fakeVault) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/vault/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/vault/")

		switch r.Method {
		case http.MethodGet:
			if strings.HasSuffix(r.URL.Path, "/") {
				f.serveList(w, path)
				return
			}
			content, ok := f.notes[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/markdown")
			io.WriteString(w, content)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			f.notes[path] = string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/search/simple/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		query := r.URL.Query().Get("query")
		hits := []searchHit{}
		for name, content := range f.notes {
			idx := strings.Index(content, query)
			if idx < 0 {
				continue
			}
			hits = append(hits, searchHit{
				Filename: name,
				Score:    1,
				Matches:  []searchMatch{{Context: content}},
			})
		}
		json.NewEncoder(w).Encode(hits)
	})
	return mux
}

func (f *fakeVault) serveList(w http.ResponseWriter, prefix string) {
	seen := map[string]bool{}
	files := []string{}
	for name := range f.notes {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			folder := rest[:i+1]
			if !seen[folder] {
				seen[folder] = true
				files = append(files, folder)
			}
		} else {
			files = append(files, rest)
		}
	}
	json.NewEncoder(w).Encode(listResponse{Files: files})
}

func newTestClient(t *testing.T, fake *fakeVault) *Client {
	t.Helper()
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL, fake.apiKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.SetHTTPClient(ts.Client())
	return client
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", "key"); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := NewClient("https://127.0.0.1:27124", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestClient_ReadWrite(t *testing.T) {
	fake := newFakeVault("test-key")
	client := newTestClient(t, fake)
	ctx := context.Background()

	if err := client.Write(ctx, "notes/daily/2026-08-31.md", "# Daily\n\ntasks"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	content, err := client.Read(ctx, "notes/daily/2026-08-31.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content != "# Daily\n\ntasks" {
		t.Errorf("content = %q", content)
	}
}

func TestClient_ReadNotFound(t *testing.T) {
	fake := newFakeVault("test-key")
	client := newTestClient(t, fake)

	_, err := client.Read(context.Background(), "missing.md")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not-found kind, got %v", err)
	}
}

func TestClient_AccessDenied(t *testing.T) {
	fake := newFakeVault("real-key")
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL, "wrong-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.SetHTTPClient(ts.Client())

	_, readErr := client.Read(context.Background(), "note.md")
	if !IsAccessDenied(readErr) {
		t.Errorf("expected access-denied kind, got %v", readErr)
	}
}

func TestClient_TransientOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL, "key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, readErr := client.Read(context.Background(), "note.md")
	if !IsTransient(readErr) {
		t.Errorf("expected transient kind, got %v", readErr)
	}
}

func TestClient_TransientOnConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client, err := NewClient(ts.URL, "key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, readErr := client.Read(context.Background(), "note.md")
	if !IsTransient(readErr) {
		t.Errorf("expected transient kind, got %v", readErr)
	}
}

func TestClient_Exists(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["present.md"] = "content"
	client := newTestClient(t, fake)
	ctx := context.Background()

	exists, err := client.Exists(ctx, "present.md")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected present.md to exist")
	}

	exists, err = client.Exists(ctx, "absent.md")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected absent.md to not exist")
	}
}

func TestClient_List(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["a.md"] = "x"
	fake.notes["b.md"] = "x"
	fake.notes["projects/plan.md"] = "x"
	client := newTestClient(t, fake)

	listing, err := client.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Entries) != 2 {
		t.Errorf("entries = %v", listing.Entries)
	}
	if len(listing.Folders) != 1 || listing.Folders[0] != "projects" {
		t.Errorf("folders = %v", listing.Folders)
	}
	if listing.Truncated {
		t.Error("listing should not be truncated")
	}
}

func TestClient_ListPrefix(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["projects/plan.md"] = "x"
	fake.notes["projects/notes.md"] = "x"
	fake.notes["other.md"] = "x"
	client := newTestClient(t, fake)

	listing, err := client.List(context.Background(), "projects/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Entries) != 2 {
		t.Errorf("entries = %v", listing.Entries)
	}
}

func TestClient_ListLimit(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["a.md"] = "x"
	fake.notes["b.md"] = "x"
	fake.notes["c.md"] = "x"
	client := newTestClient(t, fake)

	listing, err := client.List(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := len(listing.Entries) + len(listing.Folders); got != 2 {
		t.Errorf("total entries = %d, want 2", got)
	}
	if !listing.Truncated {
		t.Error("expected truncated listing")
	}
}

func TestClient_Search(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["alpha.md"] = "the needle is here"
	fake.notes["beta.md"] = "nothing relevant"
	fake.notes["deep/gamma.md"] = "another needle sighting"
	client := newTestClient(t, fake)

	results, err := client.Search(context.Background(), "needle", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	for _, r := range results {
		if r.Excerpt == "" {
			t.Errorf("empty excerpt for %s", r.Location)
		}
	}

	scoped, err := client.Search(context.Background(), "needle", "deep/", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Location != "deep/gamma.md" {
		t.Errorf("scoped results = %v", scoped)
	}
}

func TestClient_SearchLimit(t *testing.T) {
	fake := newFakeVault("test-key")
	fake.notes["a.md"] = "needle"
	fake.notes["b.md"] = "needle"
	fake.notes["c.md"] = "needle"
	client := newTestClient(t, fake)

	results, err := client.Search(context.Background(), "needle", "", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}
