package store

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultRecorderCapacity = 256
	recorderJobTimeout      = 5 * time.Second
)

var ErrRecorderDrainTimeout = errors.New("store: recorder drain timed out")

type recordJob struct {
	label string
	run   func(ctx context.Context) error
}

// Recorder feeds a Service from a single background worker so the tick loop
// never blocks on storage. Enqueue is non-blocking: when the queue is full
// the oldest pending record is dropped and counted. Close drains what is
// queued, bounded by drainTimeout.
type Recorder struct {
	svc  Service
	jobs chan recordJob
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int64

	drainTimeout time.Duration
}

func NewRecorder(svc Service, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultRecorderCapacity
	}
	r := &Recorder{
		svc:          svc,
		jobs:         make(chan recordJob, capacity),
		done:         make(chan struct{}),
		drainTimeout: recorderJobTimeout,
	}
	go r.run()
	return r
}

// RecordHand queues a completed hand for persistence.
func (r *Recorder) RecordHand(rec *HandRecord) {
	if rec == nil {
		return
	}
	r.enqueue(recordJob{
		label: "hand " + rec.HandID,
		run: func(ctx context.Context) error {
			return r.svc.PersistCompletedHand(ctx, rec)
		},
	})
}

// RecordChipTx queues a chip movement for persistence.
func (r *Recorder) RecordChipTx(tx *ChipTx) {
	if tx == nil {
		return
	}
	r.enqueue(recordJob{
		label: "chip tx " + tx.Kind + " " + tx.AgentID,
		run: func(ctx context.Context) error {
			return r.svc.PersistChipTx(ctx, tx)
		},
	})
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting records and waits for the queue to drain. The
// underlying Service stays open; the caller owns its lifecycle.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.jobs)
	select {
	case <-r.done:
		return nil
	case <-time.After(r.drainTimeout):
		return ErrRecorderDrainTimeout
	}
}

func (r *Recorder) enqueue(job recordJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped++
		return
	}
	select {
	case r.jobs <- job:
		return
	default:
	}

	// Queue full: make room by discarding the oldest pending record.
	select {
	case old := <-r.jobs:
		r.dropped++
		log.Warnf("[Store] record queue full, dropped %s (total dropped=%d)", old.label, r.dropped)
	default:
	}
	select {
	case r.jobs <- job:
	default:
		r.dropped++
		log.Warnf("[Store] record queue full, dropped %s (total dropped=%d)", job.label, r.dropped)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), recorderJobTimeout)
		if err := job.run(ctx); err != nil {
			log.Warnf("[Store] persist %s failed: %v", job.label, err)
		}
		cancel()
	}
}
