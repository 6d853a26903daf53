package tasks

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// TxBeginner opens a transaction for the per-podcast sync writes. Satisfied
// by *database.DB.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetPodcastID() string
	GetOutcome() string
	Start()
	GetDuration() time.Duration
}

// TaskSchedulerInterface drives the ingestion worker pool: one-shot passes
// for CLI mode, Start/Stop around a ticker loop for watch mode.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	RunPass(ctx context.Context) (PassStats, error)
	LastPass() (PassStats, bool)
}
