package services

import (
	"fmt"
	"testing"
	"time"

	"score-relay-system/models"
)

func msg(id, text string) models.ChatMessage {
	return models.ChatMessage{ID: id, Author: "alice", Text: text, PostedAt: time.Now().UTC()}
}

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub()

	_, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()

	hub.Publish(msg("m1", "hello"))

	for i, ch := range []<-chan models.ChatMessage{ch1, ch2} {
		select {
		case got := <-ch:
			if got.ID != "m1" {
				t.Fatalf("subscriber %d got wrong message: %+v", i, got)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	hub.Publish(msg("m1", "hello"))

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHubDropsOldestWhenSubscriberFallsBehind(t *testing.T) {
	hub := NewHub()
	_, ch := hub.Subscribe()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish(msg(fmt.Sprintf("m%d", i), "x"))
	}

	// The three oldest were dropped; delivery resumes from m3 and stays
	// in order.
	first := <-ch
	if first.ID != "m3" {
		t.Fatalf("expected oldest surviving message m3, got %s", first.ID)
	}
	var last models.ChatMessage
	for i := 0; i < subscriberBuffer-1; i++ {
		last = <-ch
	}
	if last.ID != fmt.Sprintf("m%d", subscriberBuffer+2) {
		t.Fatalf("expected newest message last, got %s", last.ID)
	}
}

func TestHubPublishToNoSubscribersIsFireAndForget(t *testing.T) {
	hub := NewHub()
	hub.Publish(msg("m1", "nobody home"))

	// A late subscriber sees nothing; missed messages only come back
	// through log replay.
	_, ch := hub.Subscribe()
	select {
	case got := <-ch:
		t.Fatalf("late subscriber should not receive %+v", got)
	default:
	}
}
