package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/courier-im/courier/internal/status"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestResolveCounterpartyCreatesTriple(t *testing.T) {
	db := testDB(t)

	res, err := db.ResolveCounterparty(ChannelSMS, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	if !res.ContactCreated || !res.ConversationCreated {
		t.Errorf("created = (%v, %v), want (true, true)", res.ContactCreated, res.ConversationCreated)
	}
	if res.Contact.Name != "+15550001234" {
		t.Errorf("contact name = %q, want the address itself", res.Contact.Name)
	}

	ch, err := db.GetChannel(ChannelSMS, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	if ch == nil || !ch.IsPrimary {
		t.Fatalf("channel = %+v, want a primary channel", ch)
	}
}

func TestResolveCounterpartyFindsExisting(t *testing.T) {
	db := testDB(t)

	first, err := db.ResolveCounterparty(ChannelWhatsApp, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.ResolveCounterparty(ChannelWhatsApp, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	if second.ContactCreated || second.ConversationCreated {
		t.Error("second resolve should not create anything")
	}
	if second.Contact.ID != first.Contact.ID {
		t.Errorf("contact = %s, want %s (same contact)", second.Contact.ID, first.Contact.ID)
	}
	if second.Conversation.ID != first.Conversation.ID {
		t.Errorf("conversation = %s, want %s (same conversation)", second.Conversation.ID, first.Conversation.ID)
	}
}

func TestResolveCounterpartySeparateConversationPerChannelType(t *testing.T) {
	db := testDB(t)

	sms, err := db.ResolveCounterparty(ChannelSMS, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	wa, err := db.ResolveCounterparty(ChannelWhatsApp, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	if sms.Conversation.ID == wa.Conversation.ID {
		t.Error("SMS and WhatsApp should map to different conversations")
	}
}

func TestResolveCounterpartyRaceConvergesOnChannelConflict(t *testing.T) {
	db := testDB(t)

	first, err := db.ResolveCounterparty(ChannelSMS, "+15550009999")
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the losing side of the race: the channel row already exists
	// when createContactWithChannel runs.
	ch, created, err := db.createContactWithChannel(ChannelSMS, "+15550009999")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("created = true, want false (conflict resolved by re-read)")
	}
	if ch.ContactID != first.Contact.ID {
		t.Errorf("contact = %s, want %s (the winner's)", ch.ContactID, first.Contact.ID)
	}

	count, _ := db.ContactCount()
	if count != 1 {
		t.Errorf("contact count = %d, want 1", count)
	}
}

func seedConversation(t *testing.T, db *DB) *Conversation {
	t.Helper()
	res, err := db.ResolveCounterparty(ChannelSMS, "+15550001234")
	if err != nil {
		t.Fatal(err)
	}
	return res.Conversation
}

func TestCreateMessageWithInitialEvent(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	m := &Message{
		SID:            "SM1",
		ConversationID: conv.ID,
		Direction:      DirectionInbound,
		ChannelType:    ChannelSMS,
		From:           "+15550001234",
		To:             "+15550009999",
		Body:           "hello",
		Status:         status.Sent,
		CreatedAt:      1000,
	}
	ev := &StatusEvent{Status: status.Sent, OccurredAt: 1000}
	if err := db.CreateMessage(m, ev); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMessageBySID("SM1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "hello" {
		t.Fatalf("GetMessageBySID = %+v, want body=hello", got)
	}

	events, err := db.ListStatusEvents(got.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Status != status.Sent {
		t.Errorf("events = %+v, want one SENT entry", events)
	}
}

func TestCreateMessageDuplicateSIDConflicts(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	m := &Message{SID: "SM1", ConversationID: conv.ID, Direction: DirectionInbound, ChannelType: ChannelSMS, Status: status.Queued, CreatedAt: 1000}
	if err := db.CreateMessage(m, nil); err != nil {
		t.Fatal(err)
	}

	dup := &Message{SID: "SM1", ConversationID: conv.ID, Direction: DirectionInbound, ChannelType: ChannelSMS, Status: status.Queued, CreatedAt: 2000}
	err := db.CreateMessage(dup, nil)
	if err == nil {
		t.Fatal("duplicate SID insert should fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
}

func TestEmptySIDMessagesDoNotConflict(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	for i, body := range []string{"one", "two"} {
		m := &Message{ConversationID: conv.ID, Direction: DirectionOutbound, ChannelType: ChannelSMS, Body: body, Status: status.Queued, CreatedAt: int64(1000 + i)}
		if err := db.CreateMessage(m, nil); err != nil {
			t.Fatalf("insert %d without SID: %v", i, err)
		}
	}
	count, _ := db.MessageCount()
	if count != 2 {
		t.Errorf("message count = %d, want 2", count)
	}
}

func TestUpdateMessageSyncAppendsEvent(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	m := &Message{SID: "SM1", ConversationID: conv.ID, Direction: DirectionOutbound, ChannelType: ChannelSMS, Status: status.Sent, CreatedAt: 1000}
	if err := db.CreateMessage(m, &StatusEvent{Status: status.Sent, OccurredAt: 1000}); err != nil {
		t.Fatal(err)
	}

	m.Status = status.Delivered
	m.DeliveredAt = 2000
	if err := db.UpdateMessageSync(m, &StatusEvent{Status: status.Delivered, OccurredAt: 2000}); err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetMessageBySID("SM1")
	if got.Status != status.Delivered || got.DeliveredAt != 2000 {
		t.Errorf("message = status %s deliveredAt %d, want DELIVERED/2000", got.Status, got.DeliveredAt)
	}
	events, _ := db.ListStatusEvents(m.ID)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Status != status.Sent || events[1].Status != status.Delivered {
		t.Errorf("history = [%s, %s], want [SENT, DELIVERED]", events[0].Status, events[1].Status)
	}
}

func TestFindAdoptableMessage(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	m := &Message{ConversationID: conv.ID, Direction: DirectionOutbound, ChannelType: ChannelSMS, Body: "on my way", Status: status.Queued, CreatedAt: 100_000}
	if err := db.CreateMessage(m, nil); err != nil {
		t.Fatal(err)
	}

	got, err := db.FindAdoptableMessage(conv.ID, DirectionOutbound, "on my way", 150_000, 60_000)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("FindAdoptableMessage = %+v, want the pre-created row", got)
	}

	// Outside the window.
	got, err = db.FindAdoptableMessage(conv.ID, DirectionOutbound, "on my way", 500_000, 60_000)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("FindAdoptableMessage outside window = %+v, want nil", got)
	}

	// Different body.
	got, _ = db.FindAdoptableMessage(conv.ID, DirectionOutbound, "different", 100_000, 60_000)
	if got != nil {
		t.Errorf("FindAdoptableMessage with other body = %+v, want nil", got)
	}
}

func TestTouchConversationMonotonic(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	if err := db.TouchConversation(conv.ID, "newest", 5000); err != nil {
		t.Fatal(err)
	}
	// A stale update must not move the summary backwards.
	if err := db.TouchConversation(conv.ID, "older", 1000); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != "newest" || got.LastMessageAt != 5000 {
		t.Errorf("summary = (%q, %d), want (newest, 5000)", got.LastMessage, got.LastMessageAt)
	}
}

func TestListMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	for i := 1; i <= 5; i++ {
		m := &Message{
			SID: "SM" + string(rune('0'+i)), ConversationID: conv.ID,
			Direction: DirectionInbound, ChannelType: ChannelSMS,
			Body: "msg", Status: status.Queued, CreatedAt: int64(i * 1000),
		}
		if err := db.CreateMessage(m, nil); err != nil {
			t.Fatal(err)
		}
	}

	page, err := db.ListMessages(conv.ID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].CreatedAt != 5000 || page[1].CreatedAt != 4000 {
		t.Fatalf("first page = %+v, want [5000, 4000]", page)
	}

	page, err = db.ListMessages(conv.ID, page[1].CreatedAt, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].CreatedAt != 3000 {
		t.Fatalf("second page starts at %d, want 3000", page[0].CreatedAt)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	bodies := []string{"see you at the airport", "running late", "airport parking is full"}
	for i, body := range bodies {
		m := &Message{
			SID: "SM" + string(rune('a'+i)), ConversationID: conv.ID,
			Direction: DirectionInbound, ChannelType: ChannelSMS,
			Body: body, Status: status.Queued, CreatedAt: int64(i * 1000),
		}
		if err := db.CreateMessage(m, nil); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchMessages("airport", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}

	results, err = db.SearchMessages("parking", conv.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("scoped search got %d results, want 1", len(results))
	}
}

func TestMediaRoundTrip(t *testing.T) {
	db := testDB(t)
	conv := seedConversation(t, db)

	m := &Message{
		SID: "MM1", ConversationID: conv.ID,
		Direction: DirectionInbound, ChannelType: ChannelMMS,
		Media:  []string{"https://example.com/a.jpg", "https://example.com/b.jpg"},
		Status: status.Queued, CreatedAt: time.Now().UnixMilli(),
	}
	if err := db.CreateMessage(m, nil); err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetMessageBySID("MM1")
	if len(got.Media) != 2 || got.Media[0] != "https://example.com/a.jpg" {
		t.Errorf("media = %v, want both URIs back", got.Media)
	}
}
