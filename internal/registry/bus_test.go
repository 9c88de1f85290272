package registry

import (
	"testing"
	"time"

	"github.com/betbot/gobet/internal/events"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ev := events.New(events.TypeBotCreated, "bot-1", time.Now(), nil)
	b.Publish(ev)

	select {
	case got := <-sub.Events():
		if got.BotID != "bot-1" {
			t.Fatalf("got bot_id=%s want=bot-1", got.BotID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_FanOutToMultipleSubscribers(t *testing.T) {
	b := NewBus()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	b.Publish(events.New(events.TypeBotUpdated, "bot-2", time.Now(), nil))

	for _, sub := range []*Subscription{s1, s2} {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestBus_OverflowDropsOldestAndMarksLagged(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	// Fill the queue past capacity without draining.
	for i := 0; i < defaultSubscriberQueueSize+5; i++ {
		b.Publish(events.New(events.TypeBotUpdated, "bot-3", time.Now(), i))
	}

	// Draining should eventually surface a subscriber_lagged event since
	// the queue overflowed.
	sawLag := false
	for i := 0; i < defaultSubscriberQueueSize+5; i++ {
		select {
		case ev := <-sub.Events():
			if ev.Type == events.TypeSubscriberLagged {
				sawLag = true
			}
		default:
		}
	}
	if !sawLag {
		t.Fatal("expected a subscriber_lagged event after queue overflow")
	}
}

func TestBus_PublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBus()
	done := make(chan struct{})
	go func() {
		b.Publish(events.New(events.TypeBotDeleted, "bot-4", time.Now(), nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}
