// Package httpapi is a generic push sender for channels fronted by a plain
// HTTP gateway (Line, SMS providers). The gateway receives a small JSON
// payload and owns the provider-specific wire format.
package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// Sender posts replies to a channel gateway endpoint.
type Sender struct {
	endpoint string
	token    string
	client   *http.Client
}

// New creates a sender for one gateway endpoint with a bearer token.
func New(endpoint, token string, timeout time.Duration) (*Sender, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	return &Sender{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type payload struct {
	To      string `json:"to"`
	Content string `json:"content"`
	Audio   string `json:"audio,omitempty"` // base64
}

// Send posts the reply addressed by the contact's provider id, falling back
// to the phone number for SMS-style gateways.
func (s *Sender) Send(ctx context.Context, conv *model.Conversation, reply *model.Message) error {
	to := conv.Contact.SourceID
	if to == "" {
		to = model.NormalizePhone(conv.Contact.PhoneNumber)
	}
	if to == "" {
		return fmt.Errorf("conversation %d has no recipient identifier", conv.ID)
	}

	p := payload{To: to, Content: reply.Content}
	if a := reply.AudioAttachment(); a != nil && len(a.Data) > 0 {
		p.Audio = base64.StdEncoding.EncodeToString(a.Data)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return nil
}
