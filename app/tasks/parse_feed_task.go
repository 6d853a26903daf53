package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/podcomb/podcomb/app/database"
	"github.com/podcomb/podcomb/app/feed"
	"github.com/podcomb/podcomb/app/fetcher"
	"github.com/podcomb/podcomb/app/scheduler"
)

// ParseFeedTask runs the full ingestion pipeline for one podcast:
// fetch -> parse -> reconcile episodes -> recompute schedule. All successful
// writes happen inside a single transaction; failures roll back and write
// only the status fields.
type ParseFeedTask struct {
	Task
	Podcast     database.Podcast
	db          TxBeginner
	podcastRepo database.PodcastRepository
	episodeRepo database.EpisodeRepository
	fetchClient *fetcher.Client
	parser      *feed.Parser
	categories  map[string]int // lowercased category name -> id, shared per pass

	outcome string
}

func NewParseFeedTask(podcast database.Podcast, db TxBeginner,
	podcastRepo database.PodcastRepository, episodeRepo database.EpisodeRepository,
	fetchClient *fetcher.Client, parser *feed.Parser, categories map[string]int) *ParseFeedTask {
	return &ParseFeedTask{
		Task:        NewTask(TaskTypeParseFeed, podcast.ID),
		Podcast:     podcast,
		db:          db,
		podcastRepo: podcastRepo,
		episodeRepo: episodeRepo,
		fetchClient: fetchClient,
		parser:      parser,
		categories:  categories,
	}
}

func (t *ParseFeedTask) GetOutcome() string {
	return t.outcome
}

func (t *ParseFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.fetchClient.Fetch(ctx, fetcher.Target{
		ID:           t.Podcast.ID,
		FeedURL:      t.Podcast.FeedURL,
		ETag:         t.Podcast.ETag,
		LastModified: t.Podcast.LastModified,
		ContentHash:  t.Podcast.ContentHash,
	})
	if err != nil {
		return t.failure(ctx, database.ParserErrorUnavailable, nil, true, err)
	}

	switch result.Kind {
	case fetcher.KindNotModified:
		return t.failure(ctx, database.ParserErrorNotModified, httpStatus(result), true, nil)
	case fetcher.KindDuplicate:
		return t.failure(ctx, database.ParserErrorDuplicate, httpStatus(result), false, nil)
	case fetcher.KindHTTPError:
		if result.Terminal {
			return t.failure(ctx, database.ParserErrorInaccessible, httpStatus(result), false, result.Err)
		}
		return t.failure(ctx, database.ParserErrorUnavailable, httpStatus(result), true, result.Err)
	case fetcher.KindNetworkError:
		return t.failure(ctx, database.ParserErrorUnavailable, httpStatus(result), true, result.Err)
	}

	parsed, err := t.parser.Run(result.Body, time.Now().UTC())
	if err != nil {
		return t.failure(ctx, database.ParserErrorInvalidRSS, httpStatus(result), false, err)
	}

	if err := t.sync(ctx, result, parsed); err != nil {
		return t.failure(ctx, database.ParserErrorUnavailable, httpStatus(result), true, err)
	}
	return nil
}

// sync performs every successful-parse write inside one transaction. Any
// error leaves the store untouched: the deferred rollback fires on return,
// before the caller records the failure.
func (t *ParseFeedTask) sync(ctx context.Context, result *fetcher.Result, parsed *feed.Feed) error {
	now := time.Now().UTC()

	pubDates := make([]time.Time, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		pubDates = append(pubDates, item.PubDate)
	}
	frequency := scheduler.Schedule(parsed.PubDate, pubDates, now)

	categoryIDs, keywords := t.matchCategories(parsed.Categories)

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	podcastRepo := t.podcastRepo.WithTx(tx)
	episodeRepo := t.episodeRepo.WithTx(tx)

	guids, err := episodeRepo.GetGUIDMap(ctx, t.Podcast.ID)
	if err != nil {
		return err
	}

	diff := feed.Reconcile(parsed.Items, guids)

	deleted, err := episodeRepo.DeleteMissing(ctx, t.Podcast.ID, diff.KeepGUIDs)
	if err != nil {
		return err
	}
	if err := episodeRepo.UpdateBatch(ctx, episodeUpdates(diff.Updates)); err != nil {
		return err
	}
	if err := episodeRepo.InsertBatch(ctx, t.Podcast.ID, episodeUpserts(diff.Inserts)); err != nil {
		return err
	}

	pubDate := parsed.PubDate
	err = podcastRepo.UpdateSuccess(ctx, t.Podcast.ID, database.PodcastUpdate{
		FeedURL:      result.ResolvedURL,
		Title:        parsed.Title,
		Link:         parsed.Link,
		Description:  parsed.Description,
		Language:     parsed.Language,
		CoverURL:     parsed.CoverURL,
		FundingURL:   parsed.FundingURL,
		FundingText:  parsed.FundingText,
		Owner:        parsed.Owner,
		Explicit:     parsed.Explicit,
		Keywords:     keywords,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		ContentHash:  result.ContentHash,
		HTTPStatus:   result.Status,
		PubDate:      &pubDate,
		Frequency:    frequency,
		// a feed marked itunes:complete gets this final sync, then rests
		Active: !parsed.Complete,
	})
	if err != nil {
		return err
	}

	if err := podcastRepo.ReplaceCategories(ctx, t.Podcast.ID, categoryIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.outcome = "updated"

	slog.Info("Task completed",
		"type", "ParseFeed",
		"podcast", t.Podcast.FeedURL,
		"duration", t.GetDuration(),
		"items", len(parsed.Items),
		"inserted", len(diff.Inserts),
		"updated", len(diff.Updates),
		"deleted", deleted,
		"frequency", frequency.String())

	return nil
}

// failure persists only the status fields. Only Execute calls this, after
// any sync transaction has closed, so the pool write cannot block on a row
// lock held by this task.
func (t *ParseFeedTask) failure(ctx context.Context, parserError database.ParserError,
	status *int, active bool, cause error) error {

	frequency := scheduler.Reschedule(t.Podcast.PubDate, t.Podcast.Frequency, time.Now().UTC())

	if err := t.podcastRepo.UpdateFailure(ctx, t.Podcast.ID, parserError, status, active, frequency); err != nil {
		return fmt.Errorf("failed to record %s state: %w", parserError, err)
	}

	t.outcome = string(parserError)

	if parserError == database.ParserErrorNotModified {
		return nil
	}
	if cause != nil {
		return fmt.Errorf("%s: %w", parserError, cause)
	}
	return fmt.Errorf("%s", parserError)
}

// matchCategories splits feed terms into taxonomy ids and leftover keywords.
func (t *ParseFeedTask) matchCategories(terms []string) ([]int, string) {
	var categoryIDs []int
	var keywords []string

	for _, term := range terms {
		if id, ok := t.categories[strings.ToLower(term)]; ok {
			categoryIDs = append(categoryIDs, id)
		} else {
			keywords = append(keywords, term)
		}
	}

	return categoryIDs, strings.Join(keywords, " ")
}

func httpStatus(result *fetcher.Result) *int {
	if result == nil || result.Status == 0 {
		return nil
	}
	status := result.Status
	return &status
}

func episodeUpdates(updates []feed.ItemUpdate) []database.EpisodeUpdate {
	converted := make([]database.EpisodeUpdate, 0, len(updates))
	for _, update := range updates {
		converted = append(converted, database.EpisodeUpdate{
			ID:            update.EpisodeID,
			EpisodeUpsert: episodeUpsert(update.Item),
		})
	}
	return converted
}

func episodeUpserts(items []feed.Item) []database.EpisodeUpsert {
	converted := make([]database.EpisodeUpsert, 0, len(items))
	for _, item := range items {
		converted = append(converted, episodeUpsert(item))
	}
	return converted
}

func episodeUpsert(item feed.Item) database.EpisodeUpsert {
	return database.EpisodeUpsert{
		GUID:        item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		PubDate:     item.PubDate,
		MediaURL:    item.MediaURL,
		MediaType:   item.MediaType,
		Length:      item.Length,
		Duration:    item.Duration,
		Description: item.Description,
		Explicit:    item.Explicit,
		Season:      item.Season,
		Episode:     item.Episode,
		EpisodeType: item.EpisodeType,
		CoverURL:    item.CoverURL,
		Keywords:    item.Keywords,
	}
}
