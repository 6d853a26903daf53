package database

import (
	"time"
)

// Polling bounds shared by the due-selection SQL and the scheduler package.
// The schema default for frequency_seconds mirrors DefaultFrequency.
const (
	MinFrequency     = 3 * time.Hour
	MaxFrequency     = 30 * 24 * time.Hour
	DefaultFrequency = 24 * time.Hour

	// ClaimTTL is how long a claimed_at stamp excludes a podcast from
	// selection; a crashed worker's claim expires after this.
	ClaimTTL = time.Hour
)

// ParserError is the persisted outcome of the last failed or short-circuited
// poll. Empty means the last poll parsed successfully.
type ParserError string

const (
	ParserErrorDuplicate    ParserError = "duplicate"
	ParserErrorInaccessible ParserError = "inaccessible"
	ParserErrorInvalidRSS   ParserError = "invalid_rss"
	ParserErrorNotModified  ParserError = "not_modified"
	ParserErrorUnavailable  ParserError = "unavailable"
)

type Podcast struct {
	ID          string // Database UUID
	FeedURL     string
	Title       string
	Link        string
	Description string
	Language    string
	CoverURL    string
	FundingURL  string
	FundingText string
	Owner       string
	Explicit    bool
	Keywords    string // feed category terms not matched against the taxonomy

	ETag         string
	LastModified *time.Time // HTTP Last-Modified of last successful fetch
	ContentHash  string     // SHA-256 of last successfully fetched body

	Active      bool
	ParserError ParserError
	HTTPStatus  *int
	ParsedAt    *time.Time // last poll attempt, success or failure
	PubDate     *time.Time // most recent episode pub date seen in the feed

	Frequency   time.Duration
	Queued      bool // force selection on the next pass
	Promoted    bool
	Subscribers int
	ClaimedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Episode struct {
	ID          string
	PodcastID   string
	GUID        string
	Title       string
	Link        string
	PubDate     time.Time
	MediaURL    string
	MediaType   string
	Length      *int64
	Duration    string
	Description string
	Explicit    bool
	Season      *int
	Episode     *int
	EpisodeType string
	CoverURL    string
	Keywords    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Category struct {
	ID   int
	Name string
}

// PodcastSummary is the minimal scheduling view of a podcast row, small
// enough to exercise the due-selection predicate without a live store.
type PodcastSummary struct {
	ID          string
	Active      bool
	Queued      bool
	Promoted    bool
	Subscribers int
	ParsedAt    *time.Time
	PubDate     *time.Time
	Frequency   time.Duration
	ClaimedAt   *time.Time
}

// PodcastUpdate carries every field written on a successful parse.
type PodcastUpdate struct {
	FeedURL      string
	Title        string
	Link         string
	Description  string
	Language     string
	CoverURL     string
	FundingURL   string
	FundingText  string
	Owner        string
	Explicit     bool
	Keywords     string
	ETag         string
	LastModified *time.Time
	ContentHash  string
	HTTPStatus   int
	PubDate      *time.Time
	Frequency    time.Duration
	Active       bool
}

// EpisodeUpsert is the validated item shape handed from the ingestion
// pipeline to the episode repository.
type EpisodeUpsert struct {
	GUID        string
	Title       string
	Link        string
	PubDate     time.Time
	MediaURL    string
	MediaType   string
	Length      *int64
	Duration    string
	Description string
	Explicit    bool
	Season      *int
	Episode     *int
	EpisodeType string
	CoverURL    string
	Keywords    string
}
