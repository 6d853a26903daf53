package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchSize is the number of episode rows written per round trip.
const BatchSize = 100

var _ EpisodeRepository = (*episodeRepository)(nil)

type episodeRepository struct {
	db Querier
}

func NewEpisodeRepository(db Querier) EpisodeRepository {
	return &episodeRepository{db: db}
}

func (r *episodeRepository) WithTx(tx pgx.Tx) EpisodeRepository {
	return &episodeRepository{db: tx}
}

// GetGUIDMap returns guid -> episode id for every stored episode of a podcast.
func (r *episodeRepository) GetGUIDMap(ctx context.Context, podcastID string) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT guid, id FROM episodes WHERE podcast_id = $1
	`, podcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode guids: %w", err)
	}
	defer rows.Close()

	guids := make(map[string]string)
	for rows.Next() {
		var guid, id string
		if err := rows.Scan(&guid, &id); err != nil {
			return nil, fmt.Errorf("failed to scan episode guid row: %w", err)
		}
		guids[guid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episode guid rows: %w", err)
	}

	return guids, nil
}

// DeleteMissing removes episodes whose guid no longer appears in the feed.
func (r *episodeRepository) DeleteMissing(ctx context.Context, podcastID string, keepGUIDs []string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM episodes
		WHERE podcast_id = $1 AND NOT (guid = ANY($2::text[]))
	`, podcastID, keepGUIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete missing episodes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateBatch rewrites the mutable content fields of existing episodes.
// The guid and creation metadata are never touched.
func (r *episodeRepository) UpdateBatch(ctx context.Context, updates []EpisodeUpdate) error {
	for chunk := range batches(len(updates)) {
		batch := &pgx.Batch{}
		for _, upd := range updates[chunk.start:chunk.end] {
			batch.Queue(`
				UPDATE episodes SET
					title = $2, link = $3, pub_date = $4,
					media_url = $5, media_type = $6, length = $7,
					duration = $8, description = $9, explicit = $10,
					season = $11, episode = $12, episode_type = $13,
					cover_url = $14, keywords = $15, updated_at = NOW()
				WHERE id = $1
			`, upd.ID, upd.Title, upd.Link, upd.PubDate,
				upd.MediaURL, upd.MediaType, upd.Length,
				upd.Duration, upd.Description, upd.Explicit,
				upd.Season, upd.Episode, upd.EpisodeType,
				upd.CoverURL, upd.Keywords)
		}
		if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to update episode batch: %w", err)
		}
	}
	return nil
}

// InsertBatch adds new episodes, tolerating guid races with overlapping runs.
func (r *episodeRepository) InsertBatch(ctx context.Context, podcastID string, inserts []EpisodeUpsert) error {
	for chunk := range batches(len(inserts)) {
		batch := &pgx.Batch{}
		for _, ins := range inserts[chunk.start:chunk.end] {
			batch.Queue(`
				INSERT INTO episodes (
					podcast_id, guid, title, link, pub_date,
					media_url, media_type, length, duration, description,
					explicit, season, episode, episode_type, cover_url, keywords
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				ON CONFLICT (podcast_id, guid) DO NOTHING
			`, podcastID, ins.GUID, ins.Title, ins.Link, ins.PubDate,
				ins.MediaURL, ins.MediaType, ins.Length, ins.Duration, ins.Description,
				ins.Explicit, ins.Season, ins.Episode, ins.EpisodeType, ins.CoverURL, ins.Keywords)
		}
		if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert episode batch: %w", err)
		}
	}
	return nil
}

type chunk struct {
	start, end int
}

func batches(n int) func(yield func(chunk) bool) {
	return func(yield func(chunk) bool) {
		for start := 0; start < n; start += BatchSize {
			end := min(start+BatchSize, n)
			if !yield(chunk{start, end}) {
				return
			}
		}
	}
}
