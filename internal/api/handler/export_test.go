package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/internal/api/handler"
	"github.com/pulmoscan/pulmoscan/internal/store"
	"github.com/stretchr/testify/assert"
)

type fakeExporter struct {
	data []byte
	err  error
}

func (f *fakeExporter) JobXLSX(context.Context, uuid.UUID) ([]byte, error) {
	return f.data, f.err
}

func TestExportJob_OK(t *testing.T) {
	h := handler.NewExportJobHandler(&fakeExporter{data: []byte("workbook-bytes")})

	id := uuid.NewString()
	req := routeCtx(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"/export", nil), id)
	rec := httptest.NewRecorder()

	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=job-"+id+".xlsx",
		rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "workbook-bytes", rec.Body.String())
}

func TestExportJob_NotFound(t *testing.T) {
	h := handler.NewExportJobHandler(&fakeExporter{err: store.ErrNotFound})

	id := uuid.NewString()
	req := routeCtx(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"/export", nil), id)
	rec := httptest.NewRecorder()

	h(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportJob_InvalidID(t *testing.T) {
	h := handler.NewExportJobHandler(&fakeExporter{})

	req := routeCtx(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/xyz/export", nil), "xyz")
	rec := httptest.NewRecorder()

	h(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
