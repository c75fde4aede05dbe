package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/internal/storage"
	"github.com/pulmoscan/pulmoscan/internal/store"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// Upload is one image received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Service is the application-facing surface over the pipeline: it persists
// uploads, creates job records, and runs or dispatches the sweep.
type Service struct {
	store     store.Store
	objects   storage.Store
	pipeline  *Pipeline
	disp      *Dispatcher
	modelName string
}

// NewService creates a Service.
func NewService(st store.Store, objects storage.Store, p *Pipeline, disp *Dispatcher, modelName string) *Service {
	return &Service{
		store:     st,
		objects:   objects,
		pipeline:  p,
		disp:      disp,
		modelName: modelName,
	}
}

// ClassifyOne runs the single-image case synchronously: a one-image job
// through the same pipeline as a batch. Returns the finished job and its
// prediction.
func (s *Service) ClassifyOne(ctx context.Context, filename string, data []byte) (*models.Job, *models.Prediction, error) {
	job, refs, err := s.createJob(ctx, []Upload{{Filename: filename, Data: data}})
	if err != nil {
		return nil, nil, err
	}

	if err := s.pipeline.Run(ctx, job.ID, refs); err != nil {
		return nil, nil, fmt.Errorf("running single-image job: %w", err)
	}

	job, err = s.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reloading job: %w", err)
	}
	preds, err := s.store.ListPredictions(ctx, job.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading prediction: %w", err)
	}
	if len(preds) != 1 {
		return nil, nil, fmt.Errorf("expected 1 prediction for job %s, got %d", job.ID, len(preds))
	}
	return job, preds[0], nil
}

// CreateBatch persists the uploads, creates a pending job, and hands it to
// the dispatcher. The returned job is still pending; clients poll it.
func (s *Service) CreateBatch(ctx context.Context, uploads []Upload) (*models.Job, error) {
	job, refs, err := s.createJob(ctx, uploads)
	if err != nil {
		return nil, err
	}

	if err := s.disp.Enqueue(Dispatch{JobID: job.ID, Refs: refs}); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *Service) createJob(ctx context.Context, uploads []Upload) (*models.Job, []ImageRef, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:          uuid.New(),
		Status:      models.JobStatusPending,
		ModelName:   s.modelName,
		TotalImages: len(uploads),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	refs := make([]ImageRef, len(uploads))
	for i, up := range uploads {
		key := objectKey(job.ID, i, up.Filename)
		if err := s.objects.Put(ctx, key, up.Data); err != nil {
			return nil, nil, fmt.Errorf("storing %s: %w", up.Filename, err)
		}
		refs[i] = ImageRef{Key: key, Filename: up.Filename}
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("creating job: %w", err)
	}
	return job, refs, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, page, limit int) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, page, limit)
}

func (s *Service) ListPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListPredictions(ctx, jobID)
}

// objectKey namespaces stored images by job; the index keeps duplicate
// filenames within one batch from colliding.
func objectKey(jobID uuid.UUID, idx int, filename string) string {
	return fmt.Sprintf("%s/%03d_%s", jobID, idx, path.Base(filename))
}
