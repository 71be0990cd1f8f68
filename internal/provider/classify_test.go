package provider

import (
	"testing"

	"github.com/courier-im/courier/internal/store"
)

func TestInferChannel(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want store.ChannelType
	}{
		{"whatsapp marker on from wins over zero media", Record{From: "whatsapp:+1555", To: "+1666"}, store.ChannelWhatsApp},
		{"whatsapp marker on to", Record{From: "+1555", To: "whatsapp:+1666"}, store.ChannelWhatsApp},
		{"whatsapp marker wins over media", Record{From: "whatsapp:+1555", To: "whatsapp:+1666", NumMedia: 2}, store.ChannelWhatsApp},
		{"media makes mms", Record{From: "+1555", To: "+1666", NumMedia: 1}, store.ChannelMMS},
		{"plain is sms", Record{From: "+1555", To: "+1666"}, store.ChannelSMS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferChannel(tt.rec); got != tt.want {
				t.Errorf("InferChannel = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInferDirectionConsistentAcrossQueries(t *testing.T) {
	own := NewAddressSet([]string{"+15550001111", "whatsapp:+15550001111"})

	// The same message can come back from either directional query; the
	// classification must not depend on which one produced it.
	outbound := Record{From: "+15550001111", To: "+15550002222"}
	if got := InferDirection(outbound, own); got != store.DirectionOutbound {
		t.Errorf("outbound record classified as %s", got)
	}

	inbound := Record{From: "+15550002222", To: "+15550001111"}
	if got := InferDirection(inbound, own); got != store.DirectionInbound {
		t.Errorf("inbound record classified as %s", got)
	}

	// Prefixed form of an own address still counts as ours.
	waOutbound := Record{From: "whatsapp:+15550001111", To: "whatsapp:+15550002222"}
	if got := InferDirection(waOutbound, own); got != store.DirectionOutbound {
		t.Errorf("whatsapp outbound record classified as %s", got)
	}
}

func TestCounterparty(t *testing.T) {
	own := NewAddressSet([]string{"+15550001111"})

	out := Record{From: "+15550001111", To: "whatsapp:+15550002222"}
	if got := Counterparty(out, own); got != "+15550002222" {
		t.Errorf("Counterparty(outbound) = %q, want +15550002222", got)
	}

	in := Record{From: "+15550003333", To: "+15550001111"}
	if got := Counterparty(in, own); got != "+15550003333" {
		t.Errorf("Counterparty(inbound) = %q, want +15550003333", got)
	}
}

func TestNewAddressSetCanonicalizes(t *testing.T) {
	set := NewAddressSet([]string{"whatsapp:+1555", "1666", ""})
	if !set.Contains("+1555") {
		t.Error("prefixed entry should match its canonical form")
	}
	if !set.Contains("whatsapp:1666") {
		t.Error("lookup should canonicalize before matching")
	}
	if set.Contains("") {
		t.Error("empty address should never match")
	}
}
