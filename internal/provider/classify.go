package provider

import "github.com/courier-im/courier/internal/store"

// AddressSet holds the account's own canonical addresses. It is computed
// once per sync run from configuration and passed explicitly so that
// classification stays a pure function of its inputs.
type AddressSet map[string]struct{}

// NewAddressSet canonicalizes the given addresses into a set.
func NewAddressSet(addrs []string) AddressSet {
	set := make(AddressSet, len(addrs))
	for _, a := range addrs {
		if c := Canonicalize(a); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the canonical form of addr is in the set.
func (s AddressSet) Contains(addr string) bool {
	_, ok := s[Canonicalize(addr)]
	return ok
}

// InferChannel classifies a record's transport. The WhatsApp marker on
// either address wins; otherwise declared media makes it MMS, else SMS.
// Deterministic, no ties.
func InferChannel(r Record) store.ChannelType {
	if HasWhatsAppMarker(r.From) || HasWhatsAppMarker(r.To) {
		return store.ChannelWhatsApp
	}
	if r.NumMedia > 0 {
		return store.ChannelMMS
	}
	return store.ChannelSMS
}

// InferDirection classifies a record as sent or received by the account.
// The decision depends only on the from-address, so records are classified
// the same way regardless of which directional query produced them.
func InferDirection(r Record, own AddressSet) store.Direction {
	if own.Contains(r.From) {
		return store.DirectionOutbound
	}
	return store.DirectionInbound
}

// Counterparty returns the canonical address of the non-account party.
func Counterparty(r Record, own AddressSet) string {
	if own.Contains(r.From) {
		return Canonicalize(r.To)
	}
	return Canonicalize(r.From)
}
