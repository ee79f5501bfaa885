package inference

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// backendResponse mirrors the backend's JSON. The text field has moved over
// successive backend versions, so every historical name is mapped.
type backendResponse struct {
	Content           string `json:"content"`
	AgentResponse     string `json:"agent_response"`
	AgentResponseText string `json:"agent_response_text"`
	Audio             string `json:"audio"`
	TranscribedText   string `json:"transcribed_text"`
}

// Reply is the interpreted backend response.
type Reply struct {
	Text  string
	Audio []byte
}

// textFields is the priority order for extracting reply text. Older backend
// schemas used the later names; the first present value wins.
var textFields = []func(*backendResponse) string{
	func(r *backendResponse) string { return r.Content },
	func(r *backendResponse) string { return r.AgentResponse },
	func(r *backendResponse) string { return r.AgentResponseText },
}

// ParseReply interprets a 200 response body. A base64 "audio" field becomes
// the reply's audio payload; "transcribed_text" backfills the text only
// when no direct text field was returned.
func ParseReply(data []byte) (*Reply, error) {
	var resp backendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}

	var reply Reply
	for _, f := range textFields {
		if v := f(&resp); v != "" {
			reply.Text = v
			break
		}
	}
	if reply.Text == "" && resp.TranscribedText != "" {
		reply.Text = resp.TranscribedText
	}

	if resp.Audio != "" {
		audio, err := base64.StdEncoding.DecodeString(resp.Audio)
		if err != nil {
			return nil, fmt.Errorf("decode audio payload: %w", err)
		}
		reply.Audio = audio
	}
	return &reply, nil
}
