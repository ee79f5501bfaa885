package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelKind is the inbox channel type of a conversation. The set is
// closed: behavior is attached to the kind itself (delivery mode,
// correlation id derivation) rather than matched on free-form strings.
type ChannelKind string

const (
	ChannelWhatsApp       ChannelKind = "whatsapp"
	ChannelFacebookPage   ChannelKind = "facebook_page"
	ChannelInstagram      ChannelKind = "instagram"
	ChannelTwitterProfile ChannelKind = "twitter_profile"
	ChannelTelegramBot    ChannelKind = "telegram_bot"
	ChannelSms            ChannelKind = "sms"
	ChannelLine           ChannelKind = "line"
	ChannelDiscord        ChannelKind = "discord"
	ChannelAPI            ChannelKind = "api"
	ChannelWebWidget      ChannelKind = "web_widget"
)

// DeliveryMode tells the dispatcher how a reply reaches a channel.
type DeliveryMode int

const (
	// DeliverNone: persisting the reply is sufficient, no outbound send.
	DeliverNone DeliveryMode = iota
	// DeliverSync: push the reply through the channel sender inline.
	DeliverSync
	// DeliverQueued: hand the reply to a queued send-reply job.
	DeliverQueued
)

// Known reports whether k is a member of the closed channel set.
func (k ChannelKind) Known() bool {
	switch k {
	case ChannelWhatsApp, ChannelFacebookPage, ChannelInstagram,
		ChannelTwitterProfile, ChannelTelegramBot, ChannelSms,
		ChannelLine, ChannelDiscord, ChannelAPI, ChannelWebWidget:
		return true
	}
	return false
}

// DeliveryMode returns how replies on this channel are delivered.
// Unknown kinds fall back to DeliverNone; the dispatcher warns on them.
func (k ChannelKind) DeliveryMode() DeliveryMode {
	switch k {
	case ChannelWhatsApp, ChannelTelegramBot, ChannelSms, ChannelLine, ChannelDiscord:
		return DeliverSync
	case ChannelFacebookPage, ChannelInstagram, ChannelTwitterProfile:
		return DeliverQueued
	default:
		return DeliverNone
	}
}

// CorrelationID derives the channel-scoped identifier passed to the
// inference backend. It keeps the backend's per-contact context consistent
// across message bursts, so it must be stable for a conversation+channel
// pair: it is built only from immutable contact/conversation fields.
func (k ChannelKind) CorrelationID(conv *Conversation) string {
	switch k {
	case ChannelWhatsApp, ChannelSms:
		if p := NormalizePhone(conv.Contact.PhoneNumber); p != "" {
			return string(k) + "_" + p
		}
	case ChannelFacebookPage, ChannelInstagram, ChannelTwitterProfile,
		ChannelTelegramBot, ChannelLine, ChannelDiscord:
		if conv.Contact.SourceID != "" {
			return string(k) + "_" + conv.Contact.SourceID
		}
	default:
		// API, WebWidget, and anything unrecognized have no channel-specific
		// identifier; the conversation id alone is the context key.
		return strconv.FormatInt(conv.ID, 10)
	}
	return fmt.Sprintf("%s_unknown_%d", k, conv.ID)
}

// NormalizePhone strips the "+" prefix and separator characters from a
// phone number, leaving the digits the backend keys contact context on.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
