package job

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/inference"
	"github.com/nextlevelbuilder/autoreply/internal/lock"
	lockmem "github.com/nextlevelbuilder/autoreply/internal/lock/memory"
	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
	storemem "github.com/nextlevelbuilder/autoreply/internal/store/memory"
)

type captureDispatcher struct {
	convs   []*model.Conversation
	replies []*model.Message
}

func (d *captureDispatcher) Dispatch(_ context.Context, conv *model.Conversation, reply *model.Message) {
	d.convs = append(d.convs, conv)
	d.replies = append(d.replies, reply)
}

type fixture struct {
	locks      *lockmem.Store
	stores     *storemem.Stores
	dispatcher *captureDispatcher
	runner     *Runner
	calls      *atomic.Int64
	msgID      int64
}

// newFixture seeds one whatsapp conversation with an AI assignee and one
// incoming message, backed by a stub inference server answering body.
func newFixture(t *testing.T, body string, status int) *fixture {
	t.Helper()

	calls := &atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	stores := storemem.New()
	stores.Conversations.Put(&model.Conversation{
		ID:          1,
		Status:      model.StatusOpen,
		ChannelKind: model.ChannelWhatsApp,
		Contact:     model.Contact{PhoneNumber: "+15550102030"},
		Assignee:    &model.Agent{ID: 3, IsAI: true, AgentKey: "agent-k", HumanClerkID: "clerk-1"},
	})
	msgID, err := stores.Messages.Create(context.Background(), &model.Message{
		SourceID:       "wamid.JOB",
		ConversationID: 1,
		Content:        "hi",
		MessageType:    model.MessageIncoming,
		SenderKind:     model.SenderHuman,
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	locks := lockmem.New()
	dispatcher := &captureDispatcher{}
	client := inference.NewClient(srv.URL, "secret", 5*time.Second)
	runner := NewRunner(locks, stores.AsStores(), client, dispatcher, 5*time.Minute, 10)

	return &fixture{
		locks:      locks,
		stores:     stores,
		dispatcher: dispatcher,
		runner:     runner,
		calls:      calls,
		msgID:      msgID,
	}
}

func TestHandleSuccess(t *testing.T) {
	f := newFixture(t, `{"content":"hello! how can I help?"}`, http.StatusOK)

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("backend called %d times, want 1", got)
	}

	msgs := f.stores.Messages.All()
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want incoming + reply", len(msgs))
	}
	reply := msgs[1]
	if reply.MessageType != model.MessageOutgoing || reply.SenderKind != model.SenderAgent {
		t.Errorf("reply typed %s/%s, want outgoing/agent", reply.MessageType, reply.SenderKind)
	}
	if reply.Content != "hello! how can I help?" {
		t.Errorf("reply content = %q", reply.Content)
	}

	if len(f.dispatcher.replies) != 1 || f.dispatcher.replies[0].ID != reply.ID {
		t.Errorf("dispatched replies = %+v", f.dispatcher.replies)
	}

	if f.locks.Held(lock.RunKey("wamid.JOB")) {
		t.Error("run lock must be released after a successful job")
	}
}

func TestHandleAudioReply(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("MP3-DATA"))
	f := newFixture(t, `{"content":"here you go","audio":"`+audio+`"}`, http.StatusOK)

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	msgs := f.stores.Messages.All()
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs))
	}
	reply := msgs[1]
	if len(reply.Attachments) != 1 || reply.Attachments[0].FileType != model.FileAudio {
		t.Fatalf("reply attachments = %+v, want one audio", reply.Attachments)
	}
	if string(reply.Attachments[0].Data) != "MP3-DATA" {
		t.Errorf("audio data = %q", reply.Attachments[0].Data)
	}
}

func TestHandleRunLockHeld(t *testing.T) {
	f := newFixture(t, `{"content":"x"}`, http.StatusOK)

	runKey := lock.RunKey("wamid.JOB")
	if ok, _ := f.locks.Acquire(context.Background(), runKey, time.Minute); !ok {
		t.Fatal("seed acquire failed")
	}

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("backend called %d times while run lock held, want 0", got)
	}
	if len(f.stores.Messages.All()) != 1 {
		t.Error("no reply should be persisted while the run lock is held")
	}
	// The loser must not release a lock it never acquired.
	if !f.locks.Held(runKey) {
		t.Error("foreign run lock must stay held")
	}
}

func TestHandleBackendFailureReleasesLock(t *testing.T) {
	f := newFixture(t, `upstream exploded`, http.StatusInternalServerError)

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	if len(f.stores.Messages.All()) != 1 {
		t.Error("no reply should be persisted on backend failure")
	}
	if len(f.dispatcher.replies) != 0 {
		t.Error("nothing should be dispatched on backend failure")
	}
	if f.locks.Held(lock.RunKey("wamid.JOB")) {
		t.Error("run lock must be released even when the job fails")
	}
}

func TestHandleAssigneeChanged(t *testing.T) {
	f := newFixture(t, `{"content":"x"}`, http.StatusOK)
	// Reassigned to a human between trigger and run.
	f.stores.Conversations.Put(&model.Conversation{
		ID:          1,
		Status:      model.StatusOpen,
		ChannelKind: model.ChannelWhatsApp,
		Assignee:    &model.Agent{ID: 4, IsAI: false},
	})

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("backend called %d times for human-assigned conversation, want 0", got)
	}
	if f.locks.Held(lock.RunKey("wamid.JOB")) {
		t.Error("run lock must be released on the skip path")
	}
}

func TestHandleMissingAgentConfig(t *testing.T) {
	f := newFixture(t, `{"content":"x"}`, http.StatusOK)
	f.stores.Conversations.Put(&model.Conversation{
		ID:          1,
		Status:      model.StatusOpen,
		ChannelKind: model.ChannelWhatsApp,
		Assignee:    &model.Agent{ID: 3, IsAI: true, AgentKey: "agent-k"}, // no clerk id
	})

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, f.msgID))

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("backend called %d times without clerk id, want 0", got)
	}
	if len(f.stores.Messages.All()) != 1 {
		t.Error("no reply should be persisted without agent credentials")
	}
	if f.locks.Held(lock.RunKey("wamid.JOB")) {
		t.Error("run lock must be released on the config-error path")
	}
}

func TestHandleUnknownMessage(t *testing.T) {
	f := newFixture(t, `{"content":"x"}`, http.StatusOK)

	f.runner.Handle(context.Background(), queue.NewJob(queue.KindInferReply, 9999))

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("backend called %d times for unknown message, want 0", got)
	}
}
