package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/internal/api/response"
	"github.com/pulmoscan/pulmoscan/internal/pipeline"
	"github.com/pulmoscan/pulmoscan/internal/store"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// maxUploadBytes caps multipart memory for upload endpoints.
const maxUploadBytes = 64 << 20

// JobService is the interface the job handlers depend on.
type JobService interface {
	ClassifyOne(ctx context.Context, filename string, data []byte) (*models.Job, *models.Prediction, error)
	CreateBatch(ctx context.Context, uploads []pipeline.Upload) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, page, limit int) ([]*models.Job, int, error)
	ListPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error)
}

// NewCreateBatchHandler returns the handler for POST /api/v1/jobs/batch.
// It accepts a multipart form with one or more "images" files, validates
// each payload decodes as an image, and dispatches an async job.
func NewCreateBatchHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart form data", nil)
			return
		}

		files := r.MultipartForm.File["images"]
		if len(files) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"At least one image is required", nil)
			return
		}

		uploads := make([]pipeline.Upload, 0, len(files))
		for _, fh := range files {
			data, err := readUpload(fh)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Could not read uploaded file", map[string]string{"filename": fh.Filename})
				return
			}
			if err := validateImage(data); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_IMAGE",
					"File is not a valid image", map[string]string{"filename": fh.Filename})
				return
			}
			uploads = append(uploads, pipeline.Upload{Filename: fh.Filename, Data: data})
		}

		job, err := svc.CreateBatch(r.Context(), uploads)
		if err != nil {
			if errors.Is(err, pipeline.ErrQueueFull) {
				response.Error(w, http.StatusServiceUnavailable, "QUEUE_FULL",
					"Too many jobs in flight, try again later", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID} — the
// polling endpoint.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, err := svc.GetJob(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)

		jobs, total, err := svc.ListJobs(r.Context(), page, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewListPredictionsHandler returns the handler for
// GET /api/v1/jobs/{jobID}/predictions.
func NewListPredictionsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		preds, err := svc.ListPredictions(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if preds == nil {
			preds = []*models.Prediction{}
		}

		response.JSON(w, preds)
	}
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
