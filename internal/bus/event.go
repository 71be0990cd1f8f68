package bus

import "time"

// Event kinds published by the reconciliation engine. Consumers subscribe
// by prefix ("sync.", "message.", "contact.").
const (
	KindMessageUpserted       = "message.upserted"
	KindContactCreated        = "contact.created"
	KindSyncConversationDone  = "sync.conversation_completed"
	KindSyncBulkDone          = "sync.bulk_completed"
	KindSyncCounterpartyError = "sync.counterparty_error"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
