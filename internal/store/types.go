package store

import "github.com/courier-im/courier/internal/status"

// Direction indicates whether a message was sent by the account owner
// or received from a counterparty.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// ChannelType identifies the transport a channel or message uses.
type ChannelType string

const (
	ChannelSMS      ChannelType = "SMS"
	ChannelMMS      ChannelType = "MMS"
	ChannelWhatsApp ChannelType = "WHATSAPP"
)

// Contact is the identity anchor for a counterparty. Contacts are created
// lazily the first time an unrecognized address shows up in a sync and are
// never deleted by the sync engine.
type Contact struct {
	ID        string
	Name      string
	Email     string
	CreatedAt int64
	UpdatedAt int64
}

// Channel is a (type, address) pair owned by exactly one contact.
// (channel_type, identifier) is globally unique; it is the identity key
// used to resolve who a remote record belongs to.
type Channel struct {
	ID          string
	ContactID   string
	ChannelType ChannelType
	Identifier  string
	IsPrimary   bool
	CreatedAt   int64
}

// Conversation is the (contact, channel type) thread. LastMessage and
// LastMessageAt are a denormalized cache of the newest message; they may
// be recomputed from messages at any time and are not a source of truth.
type Conversation struct {
	ID            string
	ContactID     string
	ContactName   string
	ChannelType   ChannelType
	LastMessage   string
	LastMessageAt int64
	CreatedAt     int64
	UpdatedAt     int64
}

// Message is one entry in a conversation timeline. SID is the provider's
// identifier and is unique when present; messages created locally before a
// send is accepted carry an empty SID until the provider assigns one.
// SentAt/DeliveredAt/ReadAt are only ever filled in, never cleared.
type Message struct {
	ID             string
	SID            string
	ConversationID string
	Direction      Direction
	ChannelType    ChannelType
	From           string
	To             string
	Body           string
	Media          []string
	Status         status.Status
	ErrorCode      string
	ErrorMessage   string
	CreatedAt      int64
	SentAt         int64
	DeliveredAt    int64
	ReadAt         int64
}

// StatusEvent is an append-only history entry recording one observed
// status transition for a message.
type StatusEvent struct {
	ID         string
	MessageID  string
	Status     status.Status
	OccurredAt int64
	Payload    string
}

// SearchResult holds a message matched by full-text search with a snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
