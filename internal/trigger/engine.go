// Package trigger decides whether an incoming message should produce an
// automated reply, exactly once per logical inbound event.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/lock"
	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
)

// Enqueuer is the fire-and-forget job handoff the engine uses. The engine
// never awaits job completion.
type Enqueuer interface {
	Enqueue(job queue.Job)
}

// Engine evaluates trigger eligibility and claims the dedup lock.
type Engine struct {
	locks lock.Locker
	jobs  Enqueuer
	ttl   time.Duration
}

// New creates an engine. ttl is the trigger dedup lock expiry.
func New(locks lock.Locker, jobs Enqueuer, ttl time.Duration) *Engine {
	return &Engine{locks: locks, jobs: jobs, ttl: ttl}
}

// Evaluate checks the eligibility predicates in order and, when all hold,
// enqueues an inference job. It reports whether a job was enqueued.
// Predicate failures are normal outcomes, not errors, and leave no side
// effects; the dedup lock is the last check so nothing is claimed for an
// ineligible message.
func (e *Engine) Evaluate(ctx context.Context, msg *model.Message, conv *model.Conversation) bool {
	if msg == nil || msg.ID == 0 {
		slog.Info("trigger: message not persisted, skipping")
		return false
	}

	log := slog.With("message_id", msg.ID, "source_id", msg.SourceID)

	if msg.MessageType != model.MessageIncoming {
		log.Info("trigger: message not incoming, skipping", "message_type", msg.MessageType)
		return false
	}
	if conv == nil {
		log.Info("trigger: message has no conversation, skipping")
		return false
	}
	if conv.Assignee == nil {
		log.Info("trigger: conversation has no assignee, skipping", "conversation_id", conv.ID)
		return false
	}
	if !conv.Assignee.IsAI {
		log.Info("trigger: assignee is not an AI agent, skipping",
			"conversation_id", conv.ID, "assignee_id", conv.Assignee.ID)
		return false
	}
	if conv.Status == model.StatusResolved || conv.Status == model.StatusSnoozed {
		log.Info("trigger: conversation not active, skipping",
			"conversation_id", conv.ID, "status", conv.Status)
		return false
	}

	key := lock.TriggerKey(lock.DedupKey(msg))
	ok, err := e.locks.Acquire(ctx, key, e.ttl)
	if err != nil {
		log.Warn("trigger: lock store unavailable, skipping", "key", key, "error", err)
		return false
	}
	if !ok {
		// Expected on duplicate webhook deliveries: a sibling already won.
		log.Info("trigger: reply already triggered, skipping", "key", key)
		return false
	}

	job := queue.NewJob(queue.KindInferReply, msg.ID)
	e.jobs.Enqueue(job)
	log.Info("trigger: inference job enqueued",
		"conversation_id", conv.ID, "job", job.ID, "key", key)
	return true
}
