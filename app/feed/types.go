package feed

import (
	"time"
)

// Feed is a validated podcast channel extracted from an RSS/Atom document.
type Feed struct {
	Title       string
	Link        string
	Language    string
	CoverURL    string
	FundingURL  string
	FundingText string
	Owner       string
	Description string
	Explicit    bool
	Complete    bool
	Categories  []string

	// PubDate is the maximum pub date across items, not any channel-supplied
	// date, since that is what drives scheduling.
	PubDate time.Time

	Items []Item
}

// Item is a single validated episode entry.
type Item struct {
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
