package tasks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/podcomb/podcomb/app/cfg"
	"github.com/podcomb/podcomb/app/database"
	"github.com/podcomb/podcomb/app/feed"
	"github.com/podcomb/podcomb/app/fetcher"
)

// PassStats summarizes one ingestion pass over the due podcasts.
type PassStats struct {
	Queued    int
	Updated   int
	Unchanged int
	Failed    int
	Duration  time.Duration
}

// Scheduler owns the worker pool. Workers are persistent; each pass claims
// the due podcasts, feeds them through the queue and waits for the pool to
// drain before reporting.
type Scheduler struct {
	db           *database.DB
	podcastRepo  database.PodcastRepository
	episodeRepo  database.EpisodeRepository
	categoryRepo database.CategoryRepository
	fetchClient  *fetcher.Client
	parser       *feed.Parser

	taskQueue chan TaskInterface
	workersWG sync.WaitGroup
	watchWG   sync.WaitGroup
	passWG    sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	updated   atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	lastPass *PassStats
}

func NewScheduler(db *database.DB, podcastRepo database.PodcastRepository,
	episodeRepo database.EpisodeRepository, categoryRepo database.CategoryRepository,
	fetchClient *fetcher.Client, parser *feed.Parser) *Scheduler {

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		db:           db,
		podcastRepo:  podcastRepo,
		episodeRepo:  episodeRepo,
		categoryRepo: categoryRepo,
		fetchClient:  fetchClient,
		parser:       parser,
		taskQueue:    make(chan TaskInterface, cfg.Get().WorkerCount*2),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker pool and, in watch mode, the ticker loop that
// runs a pass every scheduler interval.
func (s *Scheduler) Start() {
	workerCount := cfg.Get().WorkerCount

	slog.Info("Scheduler starting", "workers", workerCount)

	for i := 0; i < workerCount; i++ {
		s.workersWG.Add(1)
		go s.worker(i)
	}

	if cfg.Get().Watch {
		s.watchWG.Add(1)
		go s.watch()
	}
}

// Stop cancels in-flight tasks and waits for the workers to exit. The watch
// loop is drained before the queue closes so nothing sends on a closed
// channel.
func (s *Scheduler) Stop() {
	slog.Info("Scheduler stopping")

	s.cancel()
	s.watchWG.Wait()
	close(s.taskQueue)
	s.workersWG.Wait()

	slog.Info("Scheduler stopped")
}

// RunPass claims the due podcasts, enqueues a parse task per podcast and
// blocks until all of them finish.
func (s *Scheduler) RunPass(ctx context.Context) (PassStats, error) {
	started := time.Now()

	s.updated.Store(0)
	s.unchanged.Store(0)
	s.failed.Store(0)

	categories, err := s.loadCategories(ctx)
	if err != nil {
		return PassStats{}, err
	}

	podcasts, err := s.podcastRepo.ClaimDue(ctx, cfg.Get().Limit)
	if err != nil {
		return PassStats{}, err
	}

	slog.Info("Pass started", "due", len(podcasts))

	for _, podcast := range podcasts {
		task := NewParseFeedTask(podcast, s.db, s.podcastRepo, s.episodeRepo,
			s.fetchClient, s.parser, categories)

		s.passWG.Add(1)
		select {
		case s.taskQueue <- task:
		case <-s.ctx.Done():
			s.passWG.Done()
		}
	}

	s.passWG.Wait()

	stats := PassStats{
		Queued:    len(podcasts),
		Updated:   int(s.updated.Load()),
		Unchanged: int(s.unchanged.Load()),
		Failed:    int(s.failed.Load()),
		Duration:  time.Since(started),
	}

	s.mu.Lock()
	s.lastPass = &stats
	s.mu.Unlock()

	slog.Info("Pass completed",
		"queued", stats.Queued,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"failed", stats.Failed,
		"duration", stats.Duration)

	return stats, nil
}

// LastPass reports the most recent completed pass, if any.
func (s *Scheduler) LastPass() (PassStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastPass == nil {
		return PassStats{}, false
	}
	return *s.lastPass, true
}

func (s *Scheduler) worker(id int) {
	defer s.workersWG.Done()

	slog.Debug("Worker started", "worker", id)

	for task := range s.taskQueue {
		s.executeTask(task)
		s.passWG.Done()
	}

	slog.Debug("Worker stopped", "worker", id)
}

func (s *Scheduler) executeTask(task TaskInterface) {
	timeout := time.Duration(cfg.Get().Timeout) * time.Second
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	task.Start()

	slog.Debug("Task starting", "type", task.GetType(), "podcast_id", task.GetPodcastID())

	err := task.Execute(ctx)

	switch {
	case err != nil:
		s.failed.Add(1)
		slog.Error("Task failed",
			"type", task.GetType(),
			"podcast_id", task.GetPodcastID(),
			"duration", task.GetDuration(),
			"error", err)
	case task.GetOutcome() == string(database.ParserErrorNotModified):
		s.unchanged.Add(1)
	default:
		s.updated.Add(1)
	}
}

func (s *Scheduler) watch() {
	defer s.watchWG.Done()

	interval := time.Duration(cfg.Get().SchedulerInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Watch mode active", "interval", interval)

	if _, err := s.RunPass(s.ctx); err != nil {
		slog.Error("Pass failed", "error", err)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunPass(s.ctx); err != nil {
				slog.Error("Pass failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) loadCategories(ctx context.Context) (map[string]int, error) {
	all, err := s.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	categories := make(map[string]int, len(all))
	for _, category := range all {
		categories[strings.ToLower(category.Name)] = category.ID
	}
	return categories, nil
}
