package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a job status change would leave a
// terminal state or skip a step of the state machine.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Progress is a snapshot of a job's aggregate counters as computed by the
// pipeline. HitRate is a percentage in [0, 100].
type Progress struct {
	Processed int
	Failed    int
	Cached    int
	HitRate   float64
}

// Store is the data access interface. All database operations go through here.
// Implementations must be safe for concurrent use across different jobs; a
// single job is only ever written by the worker that claimed it.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, page, limit int) ([]*models.Job, int, error)

	// ClaimJob transitions a pending job to processing and stamps
	// started_at. It returns false when the job is already processing or
	// terminal; the caller must treat that as a re-delivery and do nothing.
	ClaimJob(ctx context.Context, id uuid.UUID) (bool, error)

	// CommitProgress atomically persists partial progress: the given
	// predictions are inserted and the job's counters are replaced with p,
	// in one transaction. This is what makes mid-batch polling meaningful.
	CommitProgress(ctx context.Context, jobID uuid.UUID, p Progress, preds []*models.Prediction) error

	// FinishJob moves a processing job to a terminal status, writes the
	// final counters, and stamps completed_at exactly once.
	FinishJob(ctx context.Context, jobID uuid.UUID, status string, p Progress) error

	ListPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error)
}
