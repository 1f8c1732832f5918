package events

import (
	"fmt"
	"sync"
)

// OnProgress subscribes fn to progress events.
func OnProgress(b *Bus, fn func(generation uint64, p Progress)) (*Subscription, error) {
	return listen(b, NameProgress, fn)
}

// OnResult subscribes fn to per-item result events.
func OnResult(b *Bus, fn func(generation uint64, r ItemResult)) (*Subscription, error) {
	return listen(b, NameResult, fn)
}

// OnComplete subscribes fn to the terminal batch event.
func OnComplete(b *Bus, fn func(generation uint64, c Complete)) (*Subscription, error) {
	return listen(b, NameComplete, fn)
}

func listen[T any](b *Bus, name Name, fn func(uint64, T)) (*Subscription, error) {
	return b.Subscribe(name, func(ev Event) {
		switch payload := ev.Payload.(type) {
		case T:
			fn(ev.Generation, payload)
		case *T:
			if payload != nil {
				fn(ev.Generation, *payload)
				return
			}
			b.logger.Warn("dropping event with nil payload", "event", ev.Name, "event_id", ev.ID)
		default:
			b.logger.Warn("dropping event with unexpected payload", "event", ev.Name, "event_id", ev.ID, "payload_type", fmt.Sprintf("%T", ev.Payload))
		}
	})
}

// Group owns a set of subscriptions released together. Close is idempotent;
// a subscription added after Close is released immediately.
type Group struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

func (g *Group) Add(sub *Subscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Release()
		return
	}
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

// Close releases every subscription in the group.
func (g *Group) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.closed = true
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}

// Delivered is the number of events handed to the subscriptions still held.
func (g *Group) Delivered() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, sub := range g.subs {
		n += sub.TriggerCount()
	}
	return n
}

// Len is the number of subscriptions still held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}
