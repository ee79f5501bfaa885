package inference

import "github.com/nextlevelbuilder/autoreply/internal/model"

// Turn is one entry of the serialized message history sent to the backend.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildHistory maps conversation messages to backend turns. Agent-authored
// messages become "assistant", everything else "user". Messages without
// content are dropped rather than sent as empty strings; relative order is
// preserved.
func BuildHistory(msgs []model.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.SenderKind == model.SenderAgent {
			role = "assistant"
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns
}
