package inference

import (
	"testing"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

func TestBuildHistory(t *testing.T) {
	msgs := []model.Message{
		{ID: 1, Content: "hello", SenderKind: model.SenderHuman},
		{ID: 2, Content: "hi, how can I help?", SenderKind: model.SenderAgent},
		{ID: 3, Content: "", SenderKind: model.SenderHuman}, // voice-only, no text
		{ID: 4, Content: "my order is late", SenderKind: model.SenderHuman},
		{ID: 5, Content: "", SenderKind: model.SenderAgent},
		{ID: 6, Content: "let me check", SenderKind: model.SenderAgent},
	}

	turns := BuildHistory(msgs)
	want := []Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi, how can I help?"},
		{Role: "user", Content: "my order is late"},
		{Role: "assistant", Content: "let me check"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d: %+v", len(turns), len(want), turns)
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestBuildHistoryEmpty(t *testing.T) {
	if turns := BuildHistory(nil); len(turns) != 0 {
		t.Fatalf("got %d turns for nil input", len(turns))
	}
}
