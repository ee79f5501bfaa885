package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/lock"
	lockmem "github.com/nextlevelbuilder/autoreply/internal/lock/memory"
	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
)

type captureEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (c *captureEnqueuer) Enqueue(job queue.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
}

func (c *captureEnqueuer) all() []queue.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]queue.Job(nil), c.jobs...)
}

func eligibleFixture() (*model.Message, *model.Conversation) {
	msg := &model.Message{
		ID:             10,
		SourceID:       "wamid.TRIG",
		ConversationID: 1,
		Content:        "hi",
		MessageType:    model.MessageIncoming,
		SenderKind:     model.SenderHuman,
	}
	conv := &model.Conversation{
		ID:          1,
		Status:      model.StatusOpen,
		ChannelKind: model.ChannelWhatsApp,
		Assignee:    &model.Agent{ID: 3, IsAI: true, AgentKey: "agent-k", HumanClerkID: "clerk-1"},
	}
	return msg, conv
}

func TestEvaluateEligible(t *testing.T) {
	locks := lockmem.New()
	jobs := &captureEnqueuer{}
	eng := New(locks, jobs, time.Hour)

	msg, conv := eligibleFixture()
	if !eng.Evaluate(context.Background(), msg, conv) {
		t.Fatal("eligible message should trigger")
	}

	got := jobs.all()
	if len(got) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(got))
	}
	if got[0].Kind != queue.KindInferReply || got[0].MessageID != msg.ID {
		t.Errorf("job = %+v, want infer_reply for message %d", got[0], msg.ID)
	}
	if !locks.Held(lock.TriggerKey("wamid.TRIG")) {
		t.Error("trigger lock should be held after a successful evaluation")
	}
}

func TestEvaluatePredicates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(msg *model.Message, conv *model.Conversation)
	}{
		{
			name:   "unpersisted message",
			mutate: func(m *model.Message, _ *model.Conversation) { m.ID = 0 },
		},
		{
			name:   "outgoing message",
			mutate: func(m *model.Message, _ *model.Conversation) { m.MessageType = model.MessageOutgoing },
		},
		{
			name:   "no assignee",
			mutate: func(_ *model.Message, c *model.Conversation) { c.Assignee = nil },
		},
		{
			name:   "human assignee",
			mutate: func(_ *model.Message, c *model.Conversation) { c.Assignee.IsAI = false },
		},
		{
			name:   "resolved conversation",
			mutate: func(_ *model.Message, c *model.Conversation) { c.Status = model.StatusResolved },
		},
		{
			name:   "snoozed conversation",
			mutate: func(_ *model.Message, c *model.Conversation) { c.Status = model.StatusSnoozed },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locks := lockmem.New()
			jobs := &captureEnqueuer{}
			eng := New(locks, jobs, time.Hour)

			msg, conv := eligibleFixture()
			tt.mutate(msg, conv)

			if eng.Evaluate(context.Background(), msg, conv) {
				t.Fatal("ineligible message should not trigger")
			}
			if len(jobs.all()) != 0 {
				t.Error("no job should be enqueued")
			}
			// Predicate failures must leave no lock behind, or the message
			// could never trigger after e.g. a later AI assignment.
			if locks.Held(lock.TriggerKey(lock.DedupKey(msg))) {
				t.Error("trigger lock must not be claimed for an ineligible message")
			}
		})
	}
}

func TestEvaluateNilConversation(t *testing.T) {
	eng := New(lockmem.New(), &captureEnqueuer{}, time.Hour)
	msg, _ := eligibleFixture()
	if eng.Evaluate(context.Background(), msg, nil) {
		t.Fatal("nil conversation should not trigger")
	}
}

func TestEvaluateDuplicateDelivery(t *testing.T) {
	locks := lockmem.New()
	jobs := &captureEnqueuer{}
	eng := New(locks, jobs, time.Hour)

	msg, conv := eligibleFixture()
	if !eng.Evaluate(context.Background(), msg, conv) {
		t.Fatal("first delivery should trigger")
	}
	// A provider retry carries the same source id on a fresh row.
	retry := *msg
	retry.ID = 99
	if eng.Evaluate(context.Background(), &retry, conv) {
		t.Fatal("retry with the same source id should not trigger")
	}
	if n := len(jobs.all()); n != 1 {
		t.Fatalf("enqueued %d jobs, want 1", n)
	}
}

func TestEvaluateConcurrentDuplicates(t *testing.T) {
	locks := lockmem.New()
	jobs := &captureEnqueuer{}
	eng := New(locks, jobs, time.Hour)

	msg, conv := eligibleFixture()

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m := *msg
			m.ID = id + 1
			if eng.Evaluate(context.Background(), &m, conv) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d concurrent deliveries triggered, want exactly 1", wins)
	}
	if n := len(jobs.all()); n != 1 {
		t.Fatalf("enqueued %d jobs, want 1", n)
	}
}
