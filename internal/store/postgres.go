package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, model_name, total_images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Status, job.ModelName, job.TotalImages, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, model_name, total_images, processed_images, failed_images, cached_images,
		        cache_hit_rate, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Status, &j.ModelName, &j.TotalImages, &j.ProcessedImages, &j.FailedImages,
		&j.CachedImages, &j.CacheHitRate, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, page, limit int) ([]*models.Job, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	// Normalize pagination
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, model_name, total_images, processed_images, failed_images, cached_images,
		        cache_hit_rate, started_at, completed_at, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Status, &j.ModelName, &j.TotalImages, &j.ProcessedImages,
			&j.FailedImages, &j.CachedImages, &j.CacheHitRate, &j.StartedAt, &j.CompletedAt,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, total, rows.Err()
}

func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, started_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, models.JobStatusProcessing, models.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// The claim lost: either the job does not exist, or another delivery
	// already moved it past pending.
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get job status: %w", err)
	}
	return false, nil
}

func (s *PostgresStore) CommitProgress(ctx context.Context, jobID uuid.UUID, p Progress, preds []*models.Prediction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin progress commit: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET processed_images = $2, failed_images = $3, cached_images = $4,
		        cache_hit_rate = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $6`,
		jobID, p.Processed, p.Failed, p.Cached, p.HitRate, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMissingUpdate(ctx, jobID)
	}

	for _, pred := range preds {
		if err := insertPrediction(ctx, tx, pred); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, jobID uuid.UUID, status string, p Progress) error {
	if !models.TerminalStatus(status) {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, status)
	}

	// Conditional update, same shape as ClaimJob: only a processing job can
	// reach a terminal status, and the check and the write are one statement.
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, processed_images = $3, failed_images = $4, cached_images = $5,
		        cache_hit_rate = $6, completed_at = $7, updated_at = $7
		 WHERE id = $1 AND status = $8`,
		jobID, status, p.Processed, p.Failed, p.Cached, p.HitRate, now, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var currentStatus string
		err = s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&currentStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}
	return nil
}

// explainMissingUpdate distinguishes a vanished job from one that is no
// longer processing.
func (s *PostgresStore) explainMissingUpdate(ctx context.Context, jobID uuid.UUID) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return fmt.Errorf("%w: progress commit on %s job", ErrInvalidTransition, status)
}

// --- Predictions ---

func insertPrediction(ctx context.Context, tx pgx.Tx, pred *models.Prediction) error {
	topClasses, err := json.Marshal(pred.TopClasses)
	if err != nil {
		return fmt.Errorf("marshal top classes: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO predictions (id, job_id, image_filename, image_hash, predicted_class,
		        confidence, top_classes, processing_time_ms, from_cache, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pred.ID, pred.JobID, pred.ImageFilename, pred.ImageHash, pred.PredictedClass,
		pred.Confidence, topClasses, pred.ProcessingTimeMS, pred.FromCache, pred.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, image_filename, image_hash, predicted_class, confidence,
		        top_classes, processing_time_ms, from_cache, created_at
		 FROM predictions WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var preds []*models.Prediction
	for rows.Next() {
		var p models.Prediction
		var topClasses []byte
		if err := rows.Scan(&p.ID, &p.JobID, &p.ImageFilename, &p.ImageHash, &p.PredictedClass,
			&p.Confidence, &topClasses, &p.ProcessingTimeMS, &p.FromCache, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if err := json.Unmarshal(topClasses, &p.TopClasses); err != nil {
			return nil, fmt.Errorf("unmarshal top classes: %w", err)
		}
		preds = append(preds, &p)
	}
	return preds, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
