package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/pulmoscan/pulmoscan/internal/api/response"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// classifyResponse pairs the finished one-image job with its prediction.
type classifyResponse struct {
	Job        *models.Job        `json:"job"`
	Prediction *models.Prediction `json:"prediction"`
}

// NewClassifyHandler returns the handler for POST /api/v1/jobs/classify:
// synchronous classification of a single uploaded image.
func NewClassifyHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, fh, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"A \"file\" upload is required", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Could not read uploaded file", nil)
			return
		}
		if err := validateImage(data); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_IMAGE",
				"File is not a valid image", map[string]string{"filename": fh.Filename})
			return
		}

		job, pred, err := svc.ClassifyOne(r.Context(), fh.Filename, data)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "CLASSIFY_FAILED",
				"Classification could not be completed", nil)
			return
		}

		response.JSON(w, classifyResponse{Job: job, Prediction: pred})
	}
}

// validateImage rejects payloads that do not decode as an image. Validity
// of the bytes is checked here, at the edge; the pipeline assumes readable
// payloads are images.
func validateImage(data []byte) error {
	_, err := imaging.Decode(bytes.NewReader(data))
	return err
}
