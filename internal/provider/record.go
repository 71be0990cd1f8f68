package provider

import (
	"strconv"
	"time"
)

// Record is the narrow typed shape of one remote message, parsed at the
// provider boundary. Everything past this struct operates on typed fields;
// the loosely-typed wire payload never leaks into the engine.
type Record struct {
	SID           string
	From          string
	To            string
	Body          string
	Status        string
	DirectionHint string
	NumMedia      int
	DateCreated   time.Time
	DateUpdated   time.Time
	DateSent      time.Time
	ErrorCode     string
	ErrorMessage  string
}

// wireRecord mirrors the provider's JSON. num_media arrives as a string and
// dates as RFC 2822; both are normalized in toRecord.
type wireRecord struct {
	Sid          string `json:"sid"`
	From         string `json:"from"`
	To           string `json:"to"`
	Body         string `json:"body"`
	Status       string `json:"status"`
	Direction    string `json:"direction"`
	NumMedia     string `json:"num_media"`
	DateCreated  string `json:"date_created"`
	DateUpdated  string `json:"date_updated"`
	DateSent     string `json:"date_sent"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (w wireRecord) toRecord() Record {
	r := Record{
		SID:           w.Sid,
		From:          w.From,
		To:            w.To,
		Body:          w.Body,
		Status:        w.Status,
		DirectionHint: w.Direction,
		DateCreated:   parseWireTime(w.DateCreated),
		DateUpdated:   parseWireTime(w.DateUpdated),
		DateSent:      parseWireTime(w.DateSent),
		ErrorMessage:  w.ErrorMessage,
	}
	if n, err := strconv.Atoi(w.NumMedia); err == nil {
		r.NumMedia = n
	}
	if w.ErrorCode != nil {
		r.ErrorCode = strconv.Itoa(*w.ErrorCode)
	}
	return r
}

// parseWireTime parses the provider's RFC 2822 timestamps. A missing or
// malformed date yields the zero time rather than an error; ordering code
// treats zero as "oldest".
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
