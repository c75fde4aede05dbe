package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// TerminalStatus reports whether a job status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job tracks one classification batch. The API returns a job ID on dispatch;
// clients poll GET /api/v1/jobs/{jobID} until status is completed or failed.
// Counters never regress while the job runs and satisfy
// processed_images + failed_images <= total_images at every committed point,
// with equality once the job is terminal.
type Job struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	Status          string     `db:"status"           json:"status"`
	ModelName       string     `db:"model_name"       json:"model_name"`
	TotalImages     int        `db:"total_images"     json:"total_images"`
	ProcessedImages int        `db:"processed_images" json:"processed_images"`
	FailedImages    int        `db:"failed_images"    json:"failed_images"`
	CachedImages    int        `db:"cached_images"    json:"cached_images"`
	CacheHitRate    float64    `db:"cache_hit_rate"   json:"cache_hit_rate"`
	StartedAt       *time.Time `db:"started_at"       json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}
