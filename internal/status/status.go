package status

import (
	"slices"
	"strings"
)

// Status is the local delivery status of a message.
type Status string

const (
	Queued      Status = "QUEUED"
	Sending     Status = "SENDING"
	Sent        Status = "SENT"
	Delivered   Status = "DELIVERED"
	Undelivered Status = "UNDELIVERED"
	Failed      Status = "FAILED"
	Read        Status = "READ"
	Canceled    Status = "CANCELED"
)

// remoteTable maps the provider's free-text statuses to the local enum.
// Lookup is case-insensitive.
var remoteTable = map[string]Status{
	"queued":      Queued,
	"sending":     Sending,
	"sent":        Sent,
	"delivered":   Delivered,
	"undelivered": Undelivered,
	"failed":      Failed,
	"read":        Read,
	"canceled":    Canceled,
}

// FromRemote maps a provider status string to the local enum. Unrecognized
// input maps to Queued: an unknown status must not drop a record from the
// timeline, nor abort a sync.
func FromRemote(remote string) Status {
	if s, ok := remoteTable[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return s
	}
	return Queued
}

// validNext defines the allowed forward transitions for delivery status.
// Undelivered, Failed, Canceled and Read are terminal.
var validNext = map[Status][]Status{
	Queued:      {Sending, Sent, Delivered, Read, Undelivered, Failed, Canceled},
	Sending:     {Sent, Delivered, Read, Undelivered, Failed, Canceled},
	Sent:        {Delivered, Read, Undelivered, Failed},
	Delivered:   {Read},
	Read:        {},
	Undelivered: {},
	Failed:      {},
	Canceled:    {},
}

// Advances reports whether moving from one status to another is a forward
// transition. Stale or out-of-order provider records (a "sent" observed
// after "delivered") do not advance and must not be written back.
func Advances(from, to Status) bool {
	return slices.Contains(validNext[from], to)
}

// Terminal reports whether a status can never change again.
func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}
