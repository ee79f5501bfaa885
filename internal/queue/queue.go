// Package queue is the in-process job queue between the trigger path and
// the worker pool. Handoff is fire-and-forget: producers never observe job
// completion. Delivery is at-least-once from the handlers' point of view,
// which is why the job runner carries its own run lock.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Kind selects the handler for a job.
type Kind string

const (
	// KindInferReply asks the job runner to produce an AI reply for an
	// incoming message.
	KindInferReply Kind = "infer_reply"
	// KindSendReply delivers an already-persisted reply over its channel
	// transport (queued-delivery channels only).
	KindSendReply Kind = "send_reply"
)

// Job references a single message by id; jobs carry no other state so a
// redelivered job always re-reads current rows.
type Job struct {
	ID        string
	Kind      Kind
	MessageID int64
}

// NewJob creates a job with a fresh correlation id.
func NewJob(kind Kind, messageID int64) Job {
	return Job{ID: uuid.NewString(), Kind: kind, MessageID: messageID}
}

// Handler processes one job. Failures are the handler's to log; the queue
// schedules no retries.
type Handler func(ctx context.Context, job Job)

// Queue is a buffered in-process job queue drained by a worker pool.
type Queue struct {
	jobs     chan Job
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// New creates a queue with the given buffer size.
func New(size int) *Queue {
	return &Queue{
		jobs:     make(chan Job, size),
		handlers: make(map[Kind]Handler),
	}
}

// Handle registers the handler for a job kind. Must be called before Run.
func (q *Queue) Handle(kind Kind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue hands a job to the pool without waiting. When the buffer is full
// the job is dropped with an error log; the trigger lock's TTL means the
// event can be re-triggered once it expires.
func (q *Queue) Enqueue(job Job) {
	select {
	case q.jobs <- job:
	default:
		slog.Error("job queue full, dropping job",
			"job", job.ID, "kind", job.Kind, "message_id", job.MessageID)
	}
}

// Run drains the queue with n workers until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					q.dispatch(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) dispatch(ctx context.Context, job Job) {
	q.mu.RLock()
	h, ok := q.handlers[job.Kind]
	q.mu.RUnlock()
	if !ok {
		slog.Warn("no handler for job kind", "kind", job.Kind, "job", job.ID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("job handler panicked",
				"job", job.ID, "kind", job.Kind, "message_id", job.MessageID, "panic", r)
		}
	}()
	h(ctx, job)
}

// Len reports the number of buffered jobs. Test helper.
func (q *Queue) Len() int { return len(q.jobs) }
