package provider

import (
	"strings"

	"github.com/courier-im/courier/internal/store"
)

// whatsappPrefix is the transport scheme marker the provider puts on
// WhatsApp addresses ("whatsapp:+15550001111").
const whatsappPrefix = "whatsapp:"

// StripTransportPrefix removes a channel transport prefix if present.
// Total function: unknown shapes pass through untouched.
func StripTransportPrefix(addr string) string {
	if after, ok := strings.CutPrefix(addr, whatsappPrefix); ok {
		return after
	}
	return addr
}

// ToProviderAddress re-applies the transport prefix the given channel
// requires for outbound provider queries.
func ToProviderAddress(channelType store.ChannelType, addr string) string {
	if channelType == store.ChannelWhatsApp && !strings.HasPrefix(addr, whatsappPrefix) {
		return whatsappPrefix + addr
	}
	return addr
}

// Canonicalize normalizes an address for identity comparison: transport
// prefix stripped, surrounding space removed, bare digit strings given the
// leading + of an E.164 number.
func Canonicalize(addr string) string {
	addr = strings.TrimSpace(StripTransportPrefix(addr))
	if addr == "" {
		return addr
	}
	if isDigits(addr) {
		return "+" + addr
	}
	return addr
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// HasWhatsAppMarker reports whether an address carries the WhatsApp
// transport prefix.
func HasWhatsAppMarker(addr string) bool {
	return strings.HasPrefix(addr, whatsappPrefix)
}
