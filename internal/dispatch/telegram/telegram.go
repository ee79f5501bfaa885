// Package telegram sends replies through the Telegram Bot API. Only the
// outbound half lives here; inbound updates arrive through the webhook
// layer, which is outside this pipeline.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// Sender delivers replies to a contact's Telegram chat.
type Sender struct {
	bot *telego.Bot
}

// New creates a sender from a bot token.
func New(token string) (*Sender, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// Send pushes the reply text, and any audio attachment, to the chat
// identified by the contact's provider source id.
func (s *Sender) Send(ctx context.Context, conv *model.Conversation, reply *model.Message) error {
	chatID, err := strconv.ParseInt(conv.Contact.SourceID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", conv.Contact.SourceID, err)
	}
	chat := tu.ID(chatID)

	if reply.Content != "" {
		if _, err := s.bot.SendMessage(ctx, tu.Message(chat, reply.Content)); err != nil {
			return fmt.Errorf("telegram send message: %w", err)
		}
	}

	if a := reply.AudioAttachment(); a != nil && len(a.Data) > 0 {
		audio := tu.Audio(chat, tu.File(tu.NameReader(bytes.NewReader(a.Data), "reply.mp3")))
		if _, err := s.bot.SendAudio(ctx, audio); err != nil {
			return fmt.Errorf("telegram send audio: %w", err)
		}
	}
	return nil
}
