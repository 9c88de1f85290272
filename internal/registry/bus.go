package registry

import (
	"sync"
	"time"

	"github.com/betbot/gobet/internal/events"
)

const defaultSubscriberQueueSize = 256

// Subscription is a single dashboard client's inbound event channel.
type Subscription struct {
	id string
	ch chan events.Event

	mu     sync.Mutex
	lagged bool
}

// Events returns the channel to range over for push-frame delivery.
func (s *Subscription) Events() <-chan events.Event { return s.ch }

// Bus is a many-to-many publish/subscribe over typed events (§4.9). Each
// subscriber has a bounded queue; on overflow the oldest events are
// dropped and a single subscriber_lagged event is sent once the
// subscriber drains.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	sub := &Subscription{id: idFor(b.next), ch: make(chan events.Event, defaultSubscriberQueueSize)}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish fans out ev to every subscriber, preserving per-bot order for
// that bot's events (a bot's decision task is this bus's only caller for
// its own events, so no interleaving is possible at the source).
func (b *Bus) Publish(ev events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			sub.mu.Lock()
			if sub.lagged {
				sub.lagged = false
				lag := events.New(events.TypeSubscriberLagged, "", time.Now(), nil)
				sub.mu.Unlock()
				select {
				case sub.ch <- lag:
				default:
				}
				continue
			}
			sub.mu.Unlock()
		default:
			// queue full: drop the oldest by draining one slot, then enqueue.
			select {
			case <-sub.ch:
			default:
			}
			sub.mu.Lock()
			sub.lagged = true
			sub.mu.Unlock()
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

func idFor(n int) string {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append(buf, letters[n%len(letters)])
		n /= len(letters)
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
