package status

import "testing"

func TestFromRemoteTable(t *testing.T) {
	tests := []struct {
		remote string
		want   Status
	}{
		{"queued", Queued},
		{"sending", Sending},
		{"sent", Sent},
		{"delivered", Delivered},
		{"undelivered", Undelivered},
		{"failed", Failed},
		{"read", Read},
		{"canceled", Canceled},
		{"DELIVERED", Delivered},
		{"  Sent ", Sent},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			if got := FromRemote(tt.remote); got != tt.want {
				t.Errorf("FromRemote(%q) = %s, want %s", tt.remote, got, tt.want)
			}
		})
	}
}

func TestFromRemoteUnknownFallsBackToQueued(t *testing.T) {
	for _, remote := range []string{"robocalled", "", "accepted(??)", "🤷"} {
		if got := FromRemote(remote); got != Queued {
			t.Errorf("FromRemote(%q) = %s, want QUEUED", remote, got)
		}
	}
}

func TestAdvancesForward(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{Queued, Sending},
		{Queued, Sent},
		{Queued, Failed},
		{Sending, Sent},
		{Sent, Delivered},
		{Sent, Undelivered},
		{Delivered, Read},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if !Advances(tt.from, tt.to) {
				t.Errorf("Advances(%s, %s) = false, want true", tt.from, tt.to)
			}
		})
	}
}

func TestAdvancesRejectsRegression(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{Delivered, Sent},
		{Delivered, Queued},
		{Read, Delivered},
		{Sent, Sending},
		{Sent, Sent},
		{Failed, Sent},
		{Undelivered, Delivered},
		{Canceled, Queued},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if Advances(tt.from, tt.to) {
				t.Errorf("Advances(%s, %s) = true, want false", tt.from, tt.to)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{Read, Undelivered, Failed, Canceled} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{Queued, Sending, Sent, Delivered} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
}
