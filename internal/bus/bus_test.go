package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 4)
	defer unsub()

	b.Publish(Event{Kind: KindSyncConversationDone, Timestamp: time.Now()})

	select {
	case evt := <-ch:
		if evt.Kind != KindSyncConversationDone {
			t.Errorf("got kind %s, want %s", evt.Kind, KindSyncConversationDone)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 4)
	defer unsub()

	b.Publish(Event{Kind: KindSyncBulkDone})
	b.Publish(Event{Kind: KindMessageUpserted})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageUpserted {
			t.Errorf("got kind %s, want only message.* events", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second event %s", evt.Kind)
	default:
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Kind: KindMessageUpserted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 4)
	unsub()

	b.Publish(Event{Kind: KindMessageUpserted})

	select {
	case evt := <-ch:
		t.Errorf("got event %s after unsubscribe", evt.Kind)
	default:
	}
}
