package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDirectory struct {
	urlClaimed  bool
	hashClaimed bool
}

func (d *fakeDirectory) IsFeedURLClaimed(ctx context.Context, feedURL, excludeID string) (bool, error) {
	return d.urlClaimed, nil
}

func (d *fakeDirectory) IsContentHashClaimed(ctx context.Context, contentHash, excludeID string) (bool, error) {
	return d.hashClaimed, nil
}

func newTestClient(server *httptest.Server, directory Directory) *Client {
	return New(server.Client(), directory, "")
}

func TestFetchSuccess(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != AcceptHeader {
			t.Errorf("Expected Accept header %q, got %q", AcceptHeader, got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a User-Agent header")
		}
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 05 Jan 2026 10:00:00 GMT")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server, &fakeDirectory{})
	result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	if result.Kind != KindFetched {
		t.Fatalf("Expected KindFetched, got %s", result.Kind)
	}
	if string(result.Body) != body {
		t.Errorf("Expected body to round-trip, got %d bytes", len(result.Body))
	}
	if result.ContentHash != HashContent([]byte(body)) {
		t.Errorf("Expected content hash of body, got %s", result.ContentHash)
	}
	if result.ETag != "abc123" {
		t.Errorf("Expected unquoted etag 'abc123', got '%s'", result.ETag)
	}
	if result.LastModified == nil {
		t.Fatal("Expected Last-Modified to be parsed")
	}
	expected := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if !result.LastModified.Equal(expected) {
		t.Errorf("Expected Last-Modified %v, got %v", expected, result.LastModified)
	}
	if result.ResolvedURL != server.URL {
		t.Errorf("Expected resolved URL %s, got %s", server.URL, result.ResolvedURL)
	}
}

func TestFetchConditionalHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("If-None-Match"); got != `"abc123"` {
			t.Errorf("Expected quoted If-None-Match, got %q", got)
		}
		if got := r.Header.Get("If-Modified-Since"); got != "Mon, 05 Jan 2026 10:00:00 GMT" {
			t.Errorf("Expected If-Modified-Since, got %q", got)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	lastModified := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	client := newTestClient(server, &fakeDirectory{})
	result, err := client.Fetch(context.Background(), Target{
		ID:           "p1",
		FeedURL:      server.URL,
		ETag:         "abc123",
		LastModified: &lastModified,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Kind != KindNotModified {
		t.Errorf("Expected KindNotModified, got %s", result.Kind)
	}
	if result.Status != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", result.Status)
	}
}

func TestFetchUnchangedContentHash(t *testing.T) {
	body := []byte("<rss>unchanged</rss>")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(server, &fakeDirectory{})
	result, err := client.Fetch(context.Background(), Target{
		ID:          "p1",
		FeedURL:     server.URL,
		ContentHash: HashContent(body),
	})
	if err != nil {
		t.Fatal(err)
	}

	// the server ignored our conditional headers; the body hash catches it
	if result.Kind != KindNotModified {
		t.Errorf("Expected KindNotModified, got %s", result.Kind)
	}
}

func TestFetchHTTPErrors(t *testing.T) {
	tests := []struct {
		status   int
		terminal bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusPaymentRequired, true},
		{http.StatusForbidden, true},
		{http.StatusNotFound, true},
		{http.StatusGone, true},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
		{http.StatusTooManyRequests, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client := newTestClient(server, &fakeDirectory{})
		result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: server.URL})
		server.Close()
		if err != nil {
			t.Fatal(err)
		}

		if result.Kind != KindHTTPError {
			t.Errorf("status %d: expected KindHTTPError, got %s", tt.status, result.Kind)
		}
		if result.Terminal != tt.terminal {
			t.Errorf("status %d: expected terminal=%v, got %v", tt.status, tt.terminal, result.Terminal)
		}
		if result.Err == nil {
			t.Errorf("status %d: expected an error in the result", tt.status)
		}
	}
}

func TestFetchDuplicateContentHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss>someone else owns this</rss>"))
	}))
	defer server.Close()

	client := newTestClient(server, &fakeDirectory{hashClaimed: true})
	result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	if result.Kind != KindDuplicate {
		t.Errorf("Expected KindDuplicate, got %s", result.Kind)
	}
}

func TestFetchDuplicateRedirect(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss>redirected</rss>"))
	}))
	defer target.Close()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer source.Close()

	client := New(&http.Client{}, &fakeDirectory{urlClaimed: true}, "")
	result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: source.URL})
	if err != nil {
		t.Fatal(err)
	}

	if result.Kind != KindDuplicate {
		t.Errorf("Expected KindDuplicate, got %s", result.Kind)
	}
	if result.ResolvedURL != target.URL {
		t.Errorf("Expected resolved URL %s, got %s", target.URL, result.ResolvedURL)
	}
}

func TestFetchRedirectFollowed(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss>redirected</rss>"))
	}))
	defer target.Close()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer source.Close()

	client := New(&http.Client{}, &fakeDirectory{}, "")
	result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: source.URL})
	if err != nil {
		t.Fatal(err)
	}

	// unclaimed redirect target becomes the podcast's new feed URL
	if result.Kind != KindFetched {
		t.Errorf("Expected KindFetched, got %s", result.Kind)
	}
	if result.ResolvedURL != target.URL {
		t.Errorf("Expected resolved URL %s, got %s", target.URL, result.ResolvedURL)
	}
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(&http.Client{}, &fakeDirectory{}, "")
	result, err := client.Fetch(context.Background(), Target{ID: "p1", FeedURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	if result.Kind != KindNetworkError {
		t.Errorf("Expected KindNetworkError, got %s", result.Kind)
	}
	if result.Err == nil {
		t.Error("Expected an error in the result")
	}
}
