// Package dispatch fans a persisted reply out to the channel transport its
// conversation originated from. Routing is keyed by channel kind: push-style
// channels send inline, poll-style channels go through a queued send-reply
// job, and channels where persistence alone suffices do nothing. Unknown
// kinds log a warning and send nothing — the reply is already persisted, so
// the policy is fail open, don't crash.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
	"github.com/nextlevelbuilder/autoreply/internal/store"
)

// Sender delivers one reply over a concrete channel transport.
type Sender interface {
	Send(ctx context.Context, conv *model.Conversation, reply *model.Message) error
}

// Enqueuer is the queued-delivery handoff.
type Enqueuer interface {
	Enqueue(job queue.Job)
}

// Dispatcher routes replies to registered senders with per-channel rate
// limiting. Send failures are logged and isolated; they never propagate to
// the caller.
type Dispatcher struct {
	mu       sync.RWMutex
	senders  map[model.ChannelKind]Sender
	limiters map[model.ChannelKind]*rate.Limiter
	jobs     Enqueuer
	rate     rate.Limit
	burst    int
}

// New creates a dispatcher. perSecond/burst bound outbound sends per
// channel kind.
func New(jobs Enqueuer, perSecond float64, burst int) *Dispatcher {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		senders:  make(map[model.ChannelKind]Sender),
		limiters: make(map[model.ChannelKind]*rate.Limiter),
		jobs:     jobs,
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Register wires a sender for a channel kind.
func (d *Dispatcher) Register(kind model.ChannelKind, s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[kind] = s
}

// Dispatch delivers reply according to the conversation's channel kind.
func (d *Dispatcher) Dispatch(ctx context.Context, conv *model.Conversation, reply *model.Message) {
	kind := conv.ChannelKind
	log := slog.With("conversation_id", conv.ID, "reply_id", reply.ID, "channel", kind)

	if !kind.Known() {
		log.Warn("dispatch: unrecognized channel kind, reply not sent")
		return
	}

	switch kind.DeliveryMode() {
	case model.DeliverNone:
		// Message creation is the delivery for these channels.
		log.Debug("dispatch: channel requires no outbound send")
	case model.DeliverQueued:
		job := queue.NewJob(queue.KindSendReply, reply.ID)
		d.jobs.Enqueue(job)
		log.Info("dispatch: send-reply job enqueued", "job", job.ID)
	case model.DeliverSync:
		d.send(ctx, conv, reply)
	}
}

// send pushes the reply through the registered sender, rate limited.
func (d *Dispatcher) send(ctx context.Context, conv *model.Conversation, reply *model.Message) {
	kind := conv.ChannelKind
	log := slog.With("conversation_id", conv.ID, "reply_id", reply.ID, "channel", kind)

	d.mu.RLock()
	s, ok := d.senders[kind]
	d.mu.RUnlock()
	if !ok {
		log.Warn("dispatch: no sender registered for channel, reply not sent")
		return
	}

	if err := d.limiter(kind).Wait(ctx); err != nil {
		log.Warn("dispatch: rate limit wait aborted", "error", err)
		return
	}
	if err := s.Send(ctx, conv, reply); err != nil {
		log.Error("dispatch: channel send failed", "error", err)
		return
	}
	log.Info("dispatch: reply sent")
}

func (d *Dispatcher) limiter(kind model.ChannelKind) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[kind]
	if !ok {
		l = rate.NewLimiter(d.rate, d.burst)
		d.limiters[kind] = l
	}
	return l
}

// SendReplyHandler returns the queue handler for KindSendReply jobs: it
// re-reads the persisted reply and conversation and pushes through the
// sender path. Used by queued-delivery channels.
func (d *Dispatcher) SendReplyHandler(msgs store.MessageStore, convs store.ConversationStore) queue.Handler {
	return func(ctx context.Context, job queue.Job) {
		reply, err := msgs.Get(ctx, job.MessageID)
		if err != nil {
			slog.Error("send-reply: load reply failed", "job", job.ID, "message_id", job.MessageID, "error", err)
			return
		}
		conv, err := convs.Get(ctx, reply.ConversationID)
		if err != nil {
			slog.Error("send-reply: load conversation failed",
				"job", job.ID, "conversation_id", reply.ConversationID, "error", err)
			return
		}
		d.send(ctx, conv, reply)
	}
}
