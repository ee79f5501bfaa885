// Package whatsapp sends replies through a WhatsApp bridge over WebSocket.
// The bridge (whatsapp-web.js based) owns the actual WhatsApp protocol;
// this sender writes JSON frames to it.
package whatsapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// Sender holds one bridge connection, dialed lazily on first send.
type Sender struct {
	bridgeURL string
	mu        sync.Mutex
	conn      *websocket.Conn
}

// New creates a sender for the given bridge WebSocket URL.
func New(bridgeURL string) (*Sender, error) {
	if bridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge url is required")
	}
	return &Sender{bridgeURL: bridgeURL}, nil
}

type bridgeFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Content string `json:"content"`
	// Media carries base64 audio when the reply has a voice payload.
	Media     string `json:"media,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Send writes one message frame addressed to the contact's phone number.
// On a write failure the connection is dropped so the next send redials.
func (s *Sender) Send(_ context.Context, conv *model.Conversation, reply *model.Message) error {
	phone := model.NormalizePhone(conv.Contact.PhoneNumber)
	if phone == "" {
		return fmt.Errorf("conversation %d has no contact phone", conv.ID)
	}

	frame := bridgeFrame{Type: "message", To: phone, Content: reply.Content}
	if a := reply.AudioAttachment(); a != nil && len(a.Data) > 0 {
		frame.Media = base64.StdEncoding.EncodeToString(a.Data)
		frame.MediaType = "audio/mpeg"
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal whatsapp frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.connectLocked(); err != nil {
			return err
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("send whatsapp frame: %w", err)
	}
	return nil
}

func (s *Sender) connectLocked() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(s.bridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge: %w", err)
	}
	s.conn = conn
	return nil
}

// Close shuts the bridge connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
