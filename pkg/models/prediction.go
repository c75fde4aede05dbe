package models

import (
	"time"

	"github.com/google/uuid"
)

// FailedClass is the sentinel predicted class recorded for images that could
// not be processed. Failures still get a prediction row, so a terminal job
// always has exactly total_images predictions.
const FailedClass = "FAILED"

// ClassScore is one entry in a prediction's ranked alternatives.
type ClassScore struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the immutable per-image outcome of a job.
// ProcessingTimeMS is 0 for cache hits and failures; ImageHash is empty when
// the image bytes could not be read at all.
type Prediction struct {
	ID               uuid.UUID    `db:"id"                 json:"id"`
	JobID            uuid.UUID    `db:"job_id"             json:"job_id"`
	ImageFilename    string       `db:"image_filename"     json:"image_filename"`
	ImageHash        string       `db:"image_hash"         json:"image_hash"`
	PredictedClass   string       `db:"predicted_class"    json:"predicted_class"`
	Confidence       float64      `db:"confidence"         json:"confidence"`
	TopClasses       []ClassScore `db:"top_classes"        json:"top_classes"`
	ProcessingTimeMS float64      `db:"processing_time_ms" json:"processing_time_ms"`
	FromCache        bool         `db:"from_cache"         json:"from_cache"`
	CreatedAt        time.Time    `db:"created_at"         json:"created_at"`
}
