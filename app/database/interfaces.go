package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type PodcastStats struct {
	Total    int
	Active   int
	Due      int
	Episodes int
}

type PodcastRepository interface {
	// ClaimDue selects active podcasts due for polling in priority order,
	// stamping claimed_at on each so overlapping passes skip them.
	ClaimDue(ctx context.Context, limit int) ([]Podcast, error)

	GetPodcast(ctx context.Context, id string) (*Podcast, error)
	IsFeedURLClaimed(ctx context.Context, feedURL, excludeID string) (bool, error)
	IsContentHashClaimed(ctx context.Context, contentHash, excludeID string) (bool, error)

	// Queue flags a podcast for selection on the next pass regardless of
	// its frequency. Returns false when no such podcast exists.
	Queue(ctx context.Context, id string) (bool, error)

	UpdateSuccess(ctx context.Context, id string, upd PodcastUpdate) error
	UpdateFailure(ctx context.Context, id string, parserError ParserError, httpStatus *int, active bool, frequency time.Duration) error
	ReplaceCategories(ctx context.Context, id string, categoryIDs []int) error

	GetStats(ctx context.Context) (PodcastStats, error)
	WithTx(tx pgx.Tx) PodcastRepository
}

type EpisodeUpdate struct {
	ID string
	EpisodeUpsert
}

type EpisodeRepository interface {
	GetGUIDMap(ctx context.Context, podcastID string) (map[string]string, error)
	DeleteMissing(ctx context.Context, podcastID string, keepGUIDs []string) (int64, error)
	UpdateBatch(ctx context.Context, updates []EpisodeUpdate) error
	InsertBatch(ctx context.Context, podcastID string, inserts []EpisodeUpsert) error
	WithTx(tx pgx.Tx) EpisodeRepository
}

type CategoryRepository interface {
	Seed(ctx context.Context) error
	GetAll(ctx context.Context) ([]Category, error)
}
