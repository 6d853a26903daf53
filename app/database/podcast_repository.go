package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

const podcastColumns = `id, feed_url, title, link, description, language, cover_url,
	funding_url, funding_text, owner, explicit, keywords,
	etag, last_modified, content_hash,
	active, parser_error, http_status, parsed_at, pub_date,
	frequency_seconds, queued, promoted, subscribers, claimed_at,
	created_at, updated_at`

// duePredicate mirrors scheduler.IsDue; both are built from the same
// ClaimTTL and MaxFrequency constants.
var duePredicate = fmt.Sprintf(`active = TRUE
	AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => %d))
	AND (
		queued = TRUE
		OR parsed_at IS NULL
		OR pub_date IS NULL
		OR parsed_at < NOW() - make_interval(secs => frequency_seconds)
		OR pub_date BETWEEN NOW() - make_interval(secs => %d) AND NOW() - make_interval(secs => frequency_seconds)
	)`, int64(ClaimTTL.Seconds()), int64(MaxFrequency.Seconds()))

var _ PodcastRepository = (*podcastRepository)(nil)

type podcastRepository struct {
	db Querier
}

func NewPodcastRepository(db Querier) PodcastRepository {
	return &podcastRepository{db: db}
}

func (r *podcastRepository) WithTx(tx pgx.Tx) PodcastRepository {
	return &podcastRepository{db: tx}
}

func (r *podcastRepository) ClaimDue(ctx context.Context, limit int) ([]Podcast, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		UPDATE podcasts SET claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM podcasts
			WHERE %s
			ORDER BY queued DESC, subscribers DESC, promoted DESC,
			         parsed_at ASC NULLS FIRST, pub_date DESC NULLS FIRST
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, duePredicate, podcastColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan podcast row: %w", err)
		}
		podcasts = append(podcasts, *podcast)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating podcast rows: %w", err)
	}

	// RETURNING does not preserve the subquery ordering
	sort.SliceStable(podcasts, func(i, j int) bool {
		return higherPriority(podcasts[i], podcasts[j])
	})

	return podcasts, nil
}

// higherPriority mirrors the ClaimDue ORDER BY clause.
func higherPriority(a, b Podcast) bool {
	if a.Queued != b.Queued {
		return a.Queued
	}
	if a.Subscribers != b.Subscribers {
		return a.Subscribers > b.Subscribers
	}
	if a.Promoted != b.Promoted {
		return a.Promoted
	}
	switch {
	case a.ParsedAt == nil && b.ParsedAt != nil:
		return true
	case a.ParsedAt != nil && b.ParsedAt == nil:
		return false
	case a.ParsedAt != nil && b.ParsedAt != nil && !a.ParsedAt.Equal(*b.ParsedAt):
		return a.ParsedAt.Before(*b.ParsedAt)
	}
	switch {
	case a.PubDate == nil && b.PubDate != nil:
		return true
	case a.PubDate != nil && b.PubDate == nil:
		return false
	case a.PubDate != nil && b.PubDate != nil:
		return a.PubDate.After(*b.PubDate)
	}
	return false
}

func (r *podcastRepository) GetPodcast(ctx context.Context, id string) (*Podcast, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM podcasts WHERE id = $1
	`, podcastColumns), id)

	podcast, err := scanPodcast(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}
	return podcast, nil
}

func (r *podcastRepository) IsFeedURLClaimed(ctx context.Context, feedURL, excludeID string) (bool, error) {
	var claimed bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM podcasts WHERE feed_url = $1 AND id <> $2
		)
	`, feedURL, excludeID).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to check feed URL claim: %w", err)
	}
	return claimed, nil
}

func (r *podcastRepository) IsContentHashClaimed(ctx context.Context, contentHash, excludeID string) (bool, error) {
	var claimed bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM podcasts
			WHERE content_hash = $1 AND id <> $2 AND active = TRUE
		)
	`, contentHash, excludeID).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to check content hash claim: %w", err)
	}
	return claimed, nil
}

func (r *podcastRepository) Queue(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE podcasts SET queued = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to queue podcast: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *podcastRepository) UpdateSuccess(ctx context.Context, id string, upd PodcastUpdate) error {
	_, err := r.db.Exec(ctx, `
		UPDATE podcasts SET
			feed_url = $2, title = $3, link = $4, description = $5, language = $6,
			cover_url = $7, funding_url = $8, funding_text = $9, owner = $10,
			explicit = $11, keywords = $12,
			etag = $13, last_modified = $14, content_hash = $15,
			http_status = $16, pub_date = $17, frequency_seconds = $18,
			active = $19, parser_error = NULL, queued = FALSE,
			parsed_at = NOW(), claimed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, upd.FeedURL, upd.Title, upd.Link, upd.Description, upd.Language,
		upd.CoverURL, upd.FundingURL, upd.FundingText, upd.Owner,
		upd.Explicit, upd.Keywords,
		upd.ETag, upd.LastModified, upd.ContentHash,
		upd.HTTPStatus, upd.PubDate, int64(upd.Frequency.Seconds()),
		upd.Active)
	if err != nil {
		return fmt.Errorf("failed to update podcast: %w", err)
	}
	return nil
}

func (r *podcastRepository) UpdateFailure(ctx context.Context, id string, parserError ParserError, httpStatus *int, active bool, frequency time.Duration) error {
	_, err := r.db.Exec(ctx, `
		UPDATE podcasts SET
			parser_error = $2, http_status = $3, active = $4,
			frequency_seconds = $5, queued = FALSE,
			parsed_at = NOW(), claimed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, string(parserError), httpStatus, active, int64(frequency.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to update podcast failure state: %w", err)
	}
	return nil
}

func (r *podcastRepository) ReplaceCategories(ctx context.Context, id string, categoryIDs []int) error {
	if _, err := r.db.Exec(ctx, `
		DELETE FROM podcast_categories WHERE podcast_id = $1
	`, id); err != nil {
		return fmt.Errorf("failed to clear podcast categories: %w", err)
	}

	if len(categoryIDs) == 0 {
		return nil
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO podcast_categories (podcast_id, category_id)
		SELECT $1, unnest($2::int[])
		ON CONFLICT DO NOTHING
	`, id, categoryIDs); err != nil {
		return fmt.Errorf("failed to set podcast categories: %w", err)
	}
	return nil
}

func (r *podcastRepository) GetStats(ctx context.Context) (PodcastStats, error) {
	var stats PodcastStats
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM podcasts),
			(SELECT COUNT(*) FROM podcasts WHERE active = TRUE),
			(SELECT COUNT(*) FROM podcasts WHERE %s),
			(SELECT COUNT(*) FROM episodes)
	`, duePredicate)).Scan(&stats.Total, &stats.Active, &stats.Due, &stats.Episodes)
	if err != nil {
		return PodcastStats{}, fmt.Errorf("failed to get podcast stats: %w", err)
	}
	return stats, nil
}

func scanPodcast(row interface{ Scan(dest ...any) error }) (*Podcast, error) {
	var podcast Podcast
	var parserError *string
	var frequencySeconds int64

	err := row.Scan(
		&podcast.ID, &podcast.FeedURL, &podcast.Title, &podcast.Link,
		&podcast.Description, &podcast.Language, &podcast.CoverURL,
		&podcast.FundingURL, &podcast.FundingText, &podcast.Owner,
		&podcast.Explicit, &podcast.Keywords,
		&podcast.ETag, &podcast.LastModified, &podcast.ContentHash,
		&podcast.Active, &parserError, &podcast.HTTPStatus,
		&podcast.ParsedAt, &podcast.PubDate,
		&frequencySeconds, &podcast.Queued, &podcast.Promoted,
		&podcast.Subscribers, &podcast.ClaimedAt,
		&podcast.CreatedAt, &podcast.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parserError != nil {
		podcast.ParserError = ParserError(*parserError)
	}
	podcast.Frequency = time.Duration(frequencySeconds) * time.Second

	return &podcast, nil
}
