package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Enqueue when the dispatch buffer is at
// capacity. Callers should surface this as back-pressure, not retry blindly.
var ErrQueueFull = errors.New("dispatch queue full")

// Dispatch is one unit of work: a job and the images it covers.
type Dispatch struct {
	JobID uuid.UUID
	Refs  []ImageRef
}

// Dispatcher feeds jobs to a fixed pool of pipeline workers. Delivery is
// at-least-once; the pipeline's claim guard makes re-delivery a no-op.
// Jobs never share mutable state, so workers need no coordination beyond
// the queue itself.
type Dispatcher struct {
	pipeline *Pipeline
	queue    chan Dispatch
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(p *Pipeline, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		pipeline: p,
		queue:    make(chan Dispatch, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		// A worker owns its job end to end; there is no cancel signal once
		// a job is dispatched, so the run gets a fresh context.
		if err := d.pipeline.Run(context.Background(), job.JobID, job.Refs); err != nil {
			slog.Error("job run failed", "job_id", job.JobID, "error", err)
		}
	}
}

// Enqueue hands a job to the worker pool without blocking.
func (d *Dispatcher) Enqueue(job Dispatch) error {
	select {
	case d.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
