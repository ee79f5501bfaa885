// Package model holds the conversation domain entities shared by the
// trigger, inference, and dispatch layers.
package model

import "time"

// MessageType is the direction of a message relative to the helpdesk.
type MessageType string

const (
	MessageIncoming MessageType = "incoming"
	MessageOutgoing MessageType = "outgoing"
)

// SenderKind identifies who authored a message.
type SenderKind string

const (
	SenderHuman SenderKind = "human" // the external contact
	SenderAgent SenderKind = "agent" // a helpdesk agent (human or AI)
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusResolved ConversationStatus = "resolved"
	StatusSnoozed  ConversationStatus = "snoozed"
)

// FileType classifies an attachment payload.
type FileType string

const (
	FileAudio FileType = "audio"
	FileImage FileType = "image"
	FileVideo FileType = "video"
	FileOther FileType = "file"
)

// Attachment is a binary payload owned by exactly one message. Incoming
// attachments carry an ExternalURL and are fetched lazily; locally produced
// attachments (e.g. synthesized reply audio) carry Data directly.
type Attachment struct {
	ID          int64
	FileType    FileType
	ExternalURL string
	Data        []byte
}

// Message is a single conversation event. A zero ID means the message has
// not been durably persisted yet.
type Message struct {
	ID             int64
	SourceID       string // provider-assigned id, empty for locally originated messages
	ConversationID int64
	Content        string
	MessageType    MessageType
	SenderKind     SenderKind
	Attachments    []Attachment
	CreatedAt      time.Time
}

// AudioAttachment returns the first audio attachment, or nil.
func (m *Message) AudioAttachment() *Attachment {
	for i := range m.Attachments {
		if m.Attachments[i].FileType == FileAudio {
			return &m.Attachments[i]
		}
	}
	return nil
}

// Contact carries the channel-specific external identifiers of the person
// on the other side of a conversation.
type Contact struct {
	PhoneNumber string // E.164-ish, may be empty
	SourceID    string // provider-assigned contact id, may be empty
}

// Agent is a helpdesk operator. AI agents hold an AgentKey for the inference
// backend and a weak reference to the human operator whose credential
// (HumanClerkID) authorizes inference calls.
type Agent struct {
	ID           int64
	IsAI         bool
	AgentKey     string
	HumanClerkID string
}

// Conversation groups messages exchanged over a single inbox channel.
type Conversation struct {
	ID          int64
	Status      ConversationStatus
	Assignee    *Agent // nil when unassigned
	ChannelKind ChannelKind
	Contact     Contact
	CreatedAt   time.Time
}
