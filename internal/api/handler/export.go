package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/internal/api/response"
	"github.com/pulmoscan/pulmoscan/internal/store"
)

// Exporter is the interface the export handler depends on.
type Exporter interface {
	JobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}

// NewExportJobHandler returns the handler for GET /api/v1/jobs/{jobID}/export.
func NewExportJobHandler(svc Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		data, err := svc.JobXLSX(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "EXPORT_FAILED",
				"Export could not be generated", nil)
			return
		}

		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=job-%s.xlsx", id))
		_, _ = w.Write(data)
	}
}
