// Package discord sends replies to a Discord channel via the bot API.
package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// Sender posts replies to the contact's Discord channel.
type Sender struct {
	session *discordgo.Session
}

// New creates a sender from a bot token. The session is used purely as an
// HTTP API client; no gateway connection is opened.
func New(token string) (*Sender, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Sender{session: session}, nil
}

// Send posts the reply text and any audio attachment to the channel
// identified by the contact's provider source id.
func (s *Sender) Send(_ context.Context, conv *model.Conversation, reply *model.Message) error {
	channelID := conv.Contact.SourceID
	if channelID == "" {
		return fmt.Errorf("conversation %d has no discord channel id", conv.ID)
	}

	if reply.Content != "" {
		if _, err := s.session.ChannelMessageSend(channelID, reply.Content); err != nil {
			return fmt.Errorf("discord send message: %w", err)
		}
	}
	if a := reply.AudioAttachment(); a != nil && len(a.Data) > 0 {
		if _, err := s.session.ChannelFileSend(channelID, "reply.mp3", bytes.NewReader(a.Data)); err != nil {
			return fmt.Errorf("discord send audio: %w", err)
		}
	}
	return nil
}
