// Package job runs the asynchronous inference job: run-lock, backend call,
// reply persistence, dispatch handoff. One job instance per queued message.
package job

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/autoreply/internal/inference"
	"github.com/nextlevelbuilder/autoreply/internal/lock"
	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
	"github.com/nextlevelbuilder/autoreply/internal/store"
)

// Dispatcher hands a persisted reply to its outbound transport. Dispatch
// failures are the dispatcher's own fault class; nothing propagates back.
type Dispatcher interface {
	Dispatch(ctx context.Context, conv *model.Conversation, reply *model.Message)
}

// Runner executes inference jobs. Safe for concurrent use by the worker
// pool; the run lock serializes work per dedup key across all workers.
type Runner struct {
	locks      lock.Locker
	messages   store.MessageStore
	convs      store.ConversationStore
	client     *inference.Client
	dispatcher Dispatcher
	runTTL     time.Duration
	historyN   int
	tracer     trace.Tracer
}

// NewRunner wires a runner.
func NewRunner(locks lock.Locker, stores *store.Stores, client *inference.Client,
	dispatcher Dispatcher, runTTL time.Duration, historyN int) *Runner {
	return &Runner{
		locks:      locks,
		messages:   stores.Messages,
		convs:      stores.Conversations,
		client:     client,
		dispatcher: dispatcher,
		runTTL:     runTTL,
		historyN:   historyN,
		tracer:     otel.Tracer("autoreply/job"),
	}
}

// Handle is the queue handler for KindInferReply jobs. The run lock guards
// against queue redelivery running the same job twice concurrently — a
// separate hazard from webhook duplication, hence a separate key. The lock
// is released on every exit path once acquired, including panics below.
func (r *Runner) Handle(ctx context.Context, jb queue.Job) {
	log := slog.With("job", jb.ID, "message_id", jb.MessageID)

	msg, err := r.messages.Get(ctx, jb.MessageID)
	if err != nil {
		log.Error("inference job: load message failed", "error", err)
		return
	}
	log = log.With("source_id", msg.SourceID, "conversation_id", msg.ConversationID)

	runKey := lock.RunKey(lock.DedupKey(msg))
	held, err := r.locks.Acquire(ctx, runKey, r.runTTL)
	if err != nil {
		log.Error("inference job: lock store unavailable", "key", runKey, "error", err)
		return
	}
	if !held {
		// Another worker is already on it; nothing was acquired, nothing to release.
		log.Info("inference job: already running, skipping", "key", runKey)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("inference job: panicked", "panic", rec)
		}
		// Release must survive a cancelled worker context.
		if err := r.locks.Release(context.WithoutCancel(ctx), runKey); err != nil {
			log.Warn("inference job: run lock release failed", "key", runKey, "error", err)
		}
	}()

	r.run(ctx, log, msg)
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, msg *model.Message) {
	ctx, span := r.tracer.Start(ctx, "inference.run",
		trace.WithAttributes(
			attribute.Int64("message.id", msg.ID),
			attribute.Int64("conversation.id", msg.ConversationID),
			attribute.String("message.source_id", msg.SourceID),
		))
	defer span.End()

	fail := func(stage string, err error) {
		log.Error("inference job: "+stage, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
	}

	conv, err := r.convs.Get(ctx, msg.ConversationID)
	if err != nil {
		fail("load conversation failed", err)
		return
	}
	agent := conv.Assignee
	if agent == nil || !agent.IsAI {
		// Assignment changed between trigger and run; a normal outcome.
		log.Info("inference job: conversation no longer assigned to an AI agent, skipping")
		return
	}

	if !r.client.Configured() || agent.HumanClerkID == "" || agent.AgentKey == "" {
		log.Error("inference job: agent configuration missing",
			"agent_id", agent.ID,
			"backend_configured", r.client.Configured(),
			"clerk_id_present", agent.HumanClerkID != "",
			"agent_key_present", agent.AgentKey != "")
		span.SetStatus(codes.Error, "configuration missing")
		return
	}

	recent, err := r.convs.Recent(ctx, conv.ID, r.historyN)
	if err != nil {
		fail("load history failed", err)
		return
	}

	req := inference.Request{
		AgentKey:      agent.AgentKey,
		ClerkID:       agent.HumanClerkID,
		CorrelationID: conv.ChannelKind.CorrelationID(conv),
		History:       inference.BuildHistory(recent),
	}
	// Exactly one of query or audio goes out: a voice message suppresses
	// the textual query entirely.
	if a := msg.AudioAttachment(); a != nil {
		req.Audio = a
	} else {
		req.Query = msg.Content
	}

	reply, err := r.client.Respond(ctx, req)
	if err != nil {
		fail("backend call failed", err)
		return
	}

	out := &model.Message{
		ConversationID: conv.ID,
		Content:        reply.Text,
		MessageType:    model.MessageOutgoing,
		SenderKind:     model.SenderAgent,
		CreatedAt:      time.Now().UTC(),
	}
	if len(reply.Audio) > 0 {
		out.Attachments = append(out.Attachments, model.Attachment{
			FileType: model.FileAudio,
			Data:     reply.Audio,
		})
	}

	id, err := r.messages.Create(ctx, out)
	if err != nil {
		fail("persist reply failed", err)
		return
	}
	out.ID = id
	log.Info("inference job: reply persisted", "reply_id", id)

	// Dispatch errors are logged inside the dispatcher; a failed send after
	// a persisted reply is not an inference failure.
	r.dispatcher.Dispatch(ctx, conv, out)
}
