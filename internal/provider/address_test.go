package provider

import (
	"testing"

	"github.com/courier-im/courier/internal/store"
)

func TestStripTransportPrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"whatsapp:+15550001111", "+15550001111"},
		{"+15550001111", "+15550001111"},
		{"", ""},
		{"whatsapp:", ""},
	}
	for _, tt := range tests {
		if got := StripTransportPrefix(tt.in); got != tt.want {
			t.Errorf("StripTransportPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToProviderAddress(t *testing.T) {
	tests := []struct {
		channelType store.ChannelType
		in, want    string
	}{
		{store.ChannelWhatsApp, "+15550001111", "whatsapp:+15550001111"},
		{store.ChannelWhatsApp, "whatsapp:+15550001111", "whatsapp:+15550001111"},
		{store.ChannelSMS, "+15550001111", "+15550001111"},
		{store.ChannelMMS, "+15550001111", "+15550001111"},
	}
	for _, tt := range tests {
		if got := ToProviderAddress(tt.channelType, tt.in); got != tt.want {
			t.Errorf("ToProviderAddress(%s, %q) = %q, want %q", tt.channelType, tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"whatsapp:+15550001111", "+15550001111"},
		{"15550001111", "+15550001111"},
		{"+15550001111", "+15550001111"},
		{"  +15550001111 ", "+15550001111"},
		{"shortcode", "shortcode"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
