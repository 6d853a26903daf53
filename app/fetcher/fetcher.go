package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// AcceptHeader lists feed media types in preference order.
const AcceptHeader = "application/atom+xml,application/rdf+xml,application/rss+xml,application/x-netcdf,application/xml;q=0.9,text/xml;q=0.2,*/*;q=0.1"

// DefaultTimeout bounds a single conditional GET.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps feed downloads; anything larger is not a podcast feed.
const maxBodySize = 20 << 20

var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
}

// terminalStatuses mark a feed as permanently inaccessible.
var terminalStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusPaymentRequired: true,
	http.StatusForbidden:       true,
	http.StatusNotFound:        true,
	http.StatusGone:            true,
}

type Kind int

const (
	KindFetched Kind = iota
	KindNotModified
	KindDuplicate
	KindHTTPError
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindFetched:
		return "fetched"
	case KindNotModified:
		return "not_modified"
	case KindDuplicate:
		return "duplicate"
	case KindHTTPError:
		return "http_error"
	case KindNetworkError:
		return "network_error"
	}
	return "unknown"
}

// Directory answers whether a URL or content hash is already owned by
// another podcast. Satisfied by the podcast repository.
type Directory interface {
	IsFeedURLClaimed(ctx context.Context, feedURL, excludeID string) (bool, error)
	IsContentHashClaimed(ctx context.Context, contentHash, excludeID string) (bool, error)
}

// Target carries the caching state needed for a conditional GET.
type Target struct {
	ID           string
	FeedURL      string
	ETag         string
	LastModified *time.Time
	ContentHash  string
}

// Result is the classified outcome of one fetch. Exactly one Kind applies;
// Body and caching fields are populated only for KindFetched.
type Result struct {
	Kind         Kind
	Status       int
	Body         []byte
	ContentHash  string
	ResolvedURL  string
	ETag         string
	LastModified *time.Time
	Terminal     bool // KindHTTPError only
	Err          error
}

type Client struct {
	httpClient *http.Client
	directory  Directory
	userAgents []string
	timeout    time.Duration
}

func New(httpClient *http.Client, directory Directory, extraUserAgent string) *Client {
	userAgents := defaultUserAgents
	if extraUserAgent != "" {
		userAgents = append(append([]string{}, defaultUserAgents...), extraUserAgent)
	}
	return &Client{
		httpClient: httpClient,
		directory:  directory,
		userAgents: userAgents,
		timeout:    DefaultTimeout,
	}
}

// Fetch performs the conditional GET and classifies the response. An error
// is returned only for infrastructure failures (directory lookups); network
// and HTTP failures are expressed through the Result.
func (c *Client) Fetch(ctx context.Context, target Target) (*Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, target.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", c.userAgents[rand.IntN(len(c.userAgents))])
	if target.ETag != "" {
		req.Header.Set("If-None-Match", quoteETag(target.ETag))
	}
	if target.LastModified != nil {
		req.Header.Set("If-Modified-Since", target.LastModified.UTC().Format(http.TimeFormat))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Result{Kind: KindNetworkError, Err: err}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{Kind: KindNotModified, Status: resp.StatusCode}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Result{
			Kind:     KindHTTPError,
			Status:   resp.StatusCode,
			Terminal: terminalStatuses[resp.StatusCode],
			Err:      fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status),
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Result{Kind: KindNetworkError, Status: resp.StatusCode, Err: err}, nil
	}

	contentHash := HashContent(body)

	// some servers ignore conditional headers; the body hash catches them
	if contentHash == target.ContentHash {
		return &Result{Kind: KindNotModified, Status: resp.StatusCode, ContentHash: contentHash}, nil
	}

	resolvedURL := target.FeedURL
	if resp.Request != nil && resp.Request.URL != nil {
		resolvedURL = resp.Request.URL.String()
	}

	if resolvedURL != target.FeedURL {
		claimed, err := c.directory.IsFeedURLClaimed(ctx, resolvedURL, target.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check redirect target: %w", err)
		}
		if claimed {
			return &Result{Kind: KindDuplicate, Status: resp.StatusCode, ResolvedURL: resolvedURL}, nil
		}
	}

	claimed, err := c.directory.IsContentHashClaimed(ctx, contentHash, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check content hash: %w", err)
	}
	if claimed {
		return &Result{Kind: KindDuplicate, Status: resp.StatusCode, ContentHash: contentHash}, nil
	}

	return &Result{
		Kind:         KindFetched,
		Status:       resp.StatusCode,
		Body:         body,
		ContentHash:  contentHash,
		ResolvedURL:  resolvedURL,
		ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
		LastModified: parseLastModified(resp.Header.Get("Last-Modified")),
	}, nil
}

// HashContent digests raw feed bytes for change and duplicate detection.
func HashContent(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}

func parseLastModified(value string) *time.Time {
	if value == "" {
		return nil
	}
	if parsed, err := http.ParseTime(value); err == nil {
		return &parsed
	}
	if parsed, err := dateparse.ParseAny(value); err == nil {
		return &parsed
	}
	return nil
}
