// Package pipeline drives classification jobs from dispatch to a terminal
// status: the sweep over a batch, cache-or-infer resolution per image,
// incremental progress commits, and the final accounting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pulmoscan/pulmoscan/internal/cache"
	"github.com/pulmoscan/pulmoscan/internal/metrics"
	"github.com/pulmoscan/pulmoscan/internal/storage"
	"github.com/pulmoscan/pulmoscan/internal/store"
	"github.com/pulmoscan/pulmoscan/pkg/fingerprint"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// ImageRef locates one image of a batch.
type ImageRef struct {
	Key      string
	Filename string
}

// Pipeline executes the classification sweep. One instance is shared by all
// workers; it holds no per-job state. A batch of size 1 is the single-image
// case — there is deliberately no separate code path for it.
type Pipeline struct {
	store      store.Store
	cache      *cache.PredictionCache
	classifier models.Classifier
	objects    storage.Store
	timeout    time.Duration
}

// New creates a Pipeline. A non-positive inference timeout falls back to
// one minute.
func New(st store.Store, pc *cache.PredictionCache, cl models.Classifier, objects storage.Store, inferenceTimeout time.Duration) *Pipeline {
	if inferenceTimeout <= 0 {
		inferenceTimeout = time.Minute
	}
	return &Pipeline{
		store:      st,
		cache:      pc,
		classifier: cl,
		objects:    objects,
		timeout:    inferenceTimeout,
	}
}

// missEntry is an image awaiting the batch inference call after the sweep.
type missEntry struct {
	ref   ImageRef
	hash  string
	bytes []byte
}

// Run drives one job to a terminal status. Re-delivery of a job that is
// already processing or terminal is a no-op that alters nothing. Per-image
// errors are recorded as failure predictions and never abort the batch;
// only record-store failures and panics are fatal, and those force the job
// to failed before returning.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, refs []ImageRef) (err error) {
	claimed, err := p.store.ClaimJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		slog.Warn("job re-delivered, skipping", "job_id", jobID)
		return nil
	}

	var progress store.Progress

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "job_id", jobID, "panic", r)
			p.forceFail(jobID, progress)
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	slog.Info("job started", "job_id", jobID, "total_images", len(refs))

	var (
		misses []missEntry
		memo   = map[string]cache.CachedPrediction{} // in-batch memo of cache hits
		cached int
		failed int
	)

	// Sweep: resolve each image to a cache hit, a failure, or a miss to be
	// classified in one batch call afterwards. Progress is committed after
	// every image so pollers observe live state; that commit is part of the
	// contract, not an optimization.
	for _, ref := range refs {
		var stepPreds []*models.Prediction

		data, readErr := p.objects.Get(ctx, ref.Key)
		if readErr != nil {
			slog.Error("image unreadable", "job_id", jobID, "image", ref.Filename, "error", readErr)
			failed++
			metrics.ImagesFailed.Inc()
			stepPreds = append(stepPreds, failurePrediction(jobID, ref.Filename, ""))
		} else {
			hash := fingerprint.Sum(data)
			cp, hit := memo[hash]
			if !hit {
				cp, hit, _ = p.cache.Lookup(ctx, hash)
			}
			if hit {
				memo[hash] = cp
				cached++
				metrics.ImagesProcessed.Inc()
				stepPreds = append(stepPreds, &models.Prediction{
					ID:             uuid.New(),
					JobID:          jobID,
					ImageFilename:  ref.Filename,
					ImageHash:      hash,
					PredictedClass: cp.Class,
					Confidence:     cp.Confidence,
					TopClasses:     cp.TopClasses,
					FromCache:      true,
					CreatedAt:      time.Now().UTC(),
				})
			} else {
				misses = append(misses, missEntry{ref: ref, hash: hash, bytes: data})
			}
		}

		// Miss-set images stay out of processed until the engine call
		// resolves them; counters a poller sees must never go backwards, so
		// processed only jumps up at the final commit. The hit rate is live
		// over the images resolved so far.
		progress = store.Progress{
			Processed: cached,
			Failed:    failed,
			Cached:    cached,
			HitRate:   hitRate(cached, cached+len(misses)),
		}
		if err := p.store.CommitProgress(ctx, jobID, progress, stepPreds); err != nil {
			p.forceFail(jobID, progress)
			return fmt.Errorf("commit progress for job %s: %w", jobID, err)
		}
	}

	// One engine call for the whole miss set. An engine failure fails the
	// missed images, not the job.
	var finalPreds []*models.Prediction
	if len(misses) > 0 {
		results, inferErr := p.classifyMisses(ctx, misses)
		if inferErr != nil {
			slog.Error("batch inference failed", "job_id", jobID, "images", len(misses), "error", inferErr)
			for _, m := range misses {
				failed++
				metrics.ImagesFailed.Inc()
				finalPreds = append(finalPreds, failurePrediction(jobID, m.ref.Filename, m.hash))
			}
		} else {
			for i, res := range results {
				m := misses[i]
				p.cache.Store(ctx, m.hash, cache.CachedPrediction{
					Class:      res.Label,
					Confidence: res.Confidence,
					TopClasses: res.TopClasses,
				})
				metrics.ImagesProcessed.Inc()
				finalPreds = append(finalPreds, &models.Prediction{
					ID:               uuid.New(),
					JobID:            jobID,
					ImageFilename:    m.ref.Filename,
					ImageHash:        m.hash,
					PredictedClass:   res.Label,
					Confidence:       res.Confidence,
					TopClasses:       res.TopClasses,
					ProcessingTimeMS: res.InferenceTimeMS,
					CreatedAt:        time.Now().UTC(),
				})
			}
		}
	}

	// Final accounting from first principles, not the incremental counters.
	total := len(refs)
	processed := total - failed
	progress = store.Progress{
		Processed: processed,
		Failed:    failed,
		Cached:    cached,
		HitRate:   hitRate(cached, processed),
	}

	status := models.JobStatusCompleted
	if total > 0 && failed == total {
		status = models.JobStatusFailed
	}

	if err := p.store.CommitProgress(ctx, jobID, progress, finalPreds); err != nil {
		p.forceFail(jobID, progress)
		return fmt.Errorf("commit final progress for job %s: %w", jobID, err)
	}
	if err := p.store.FinishJob(ctx, jobID, status, progress); err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}

	metrics.JobsFinished.WithLabelValues(status).Inc()
	slog.Info("job finished", "job_id", jobID, "status", status,
		"processed", processed, "failed", failed, "cached", cached)
	return nil
}

func (p *Pipeline) classifyMisses(ctx context.Context, misses []missEntry) ([]models.Classification, error) {
	images := make([][]byte, len(misses))
	for i, m := range misses {
		images[i] = m.bytes
	}

	inferCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	results, err := p.classifier.ClassifyMany(inferCtx, images)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(results) != len(misses) {
		return nil, fmt.Errorf("engine returned %d results for %d images", len(results), len(misses))
	}
	return results, nil
}

// forceFail is the crash path: mark the job failed with whatever progress
// was committed. Errors here are only logged; the original failure matters
// more to the caller.
func (p *Pipeline) forceFail(jobID uuid.UUID, progress store.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FinishJob(ctx, jobID, models.JobStatusFailed, progress); err != nil {
		slog.Error("marking job failed", "job_id", jobID, "error", err)
		return
	}
	metrics.JobsFinished.WithLabelValues(models.JobStatusFailed).Inc()
}

func failurePrediction(jobID uuid.UUID, filename, hash string) *models.Prediction {
	return &models.Prediction{
		ID:             uuid.New(),
		JobID:          jobID,
		ImageFilename:  filename,
		ImageHash:      hash,
		PredictedClass: models.FailedClass,
		TopClasses:     []models.ClassScore{},
		CreatedAt:      time.Now().UTC(),
	}
}

// hitRate returns the cache hit percentage, 0 when nothing was processed.
func hitRate(cached, processed int) float64 {
	if processed == 0 {
		return 0
	}
	return float64(cached) / float64(processed) * 100
}
