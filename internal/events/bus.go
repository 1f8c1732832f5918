package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

var ErrBusClosed = errors.New("event bus is closed")

// Bus delivers named events to subscribers. Emit may be called from any
// goroutine; handlers run one at a time, in subscription order, on the
// emitting goroutine. A handler must not call Emit.
type Bus struct {
	logger hclog.Logger

	mu     sync.RWMutex
	subs   map[Name][]*Subscription
	closed bool

	// deliverMu serializes handler execution across emitters.
	deliverMu sync.Mutex

	emitted   atomic.Int64
	delivered atomic.Int64
	unheard   atomic.Int64
}

func NewBus(logger hclog.Logger) *Bus {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[Name][]*Subscription),
	}
}

// Subscribe registers handler for name. The subscription is active when
// Subscribe returns, so any event emitted afterwards reaches it.
func (b *Bus) Subscribe(name Name, handler Handler) (*Subscription, error) {
	if name == "" {
		return nil, fmt.Errorf("subscribe: empty event name")
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		Name:    name,
		Created: time.Now(),
		bus:     b,
		handler: handler,
	}
	b.subs[name] = append(b.subs[name], sub)

	b.logger.Debug("subscription created", "subscription_id", sub.ID, "event", name)
	return sub, nil
}

// Emit delivers ev to every active subscriber of ev.Name. It fills in a
// missing ID and timestamp. An event with no subscribers is counted and
// otherwise dropped.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if ev.Name == "" {
		return fmt.Errorf("emit: empty event name")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	targets := append([]*Subscription(nil), b.subs[ev.Name]...)
	b.mu.RUnlock()

	b.emitted.Add(1)
	if len(targets) == 0 {
		b.unheard.Add(1)
		b.logger.Trace("event has no subscribers", "event", ev.Name, "generation", ev.Generation)
		return nil
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	for _, sub := range targets {
		// Released between the snapshot and now.
		if !sub.Active() {
			continue
		}
		b.deliver(sub, ev)
	}
	return nil
}

func (b *Bus) deliver(sub *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "subscription_id", sub.ID, "event", ev.Name, "panic", r)
		}
	}()
	sub.handler(ev)
	sub.triggered.Add(1)
	b.delivered.Add(1)
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.Name]
	for i, s := range list {
		if s == sub {
			b.subs[sub.Name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.Name]) == 0 {
		delete(b.subs, sub.Name)
	}
	b.logger.Debug("subscription removed", "subscription_id", sub.ID, "event", sub.Name)
}

// SubscriberCount returns the number of active subscriptions for name.
func (b *Bus) SubscriberCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close releases every subscription and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, list := range b.subs {
		all = append(all, list...)
	}
	b.subs = make(map[Name][]*Subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.released.Store(true)
	}
}

// Stats reports delivery counters.
type Stats struct {
	Emitted   int64
	Delivered int64
	Unheard   int64
}

func (b *Bus) Stats() Stats {
	return Stats{
		Emitted:   b.emitted.Load(),
		Delivered: b.delivered.Load(),
		Unheard:   b.unheard.Load(),
	}
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	ID      string
	Name    Name
	Created time.Time

	bus       *Bus
	handler   Handler
	released  atomic.Bool
	once      sync.Once
	triggered atomic.Int64
}

// Release stops delivery to this subscription. It is safe to call more than
// once and from any goroutine. A handler already running is not interrupted.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.released.Store(true)
		s.bus.unsubscribe(s)
	})
}

func (s *Subscription) Active() bool {
	return !s.released.Load()
}

// TriggerCount is the number of events delivered to this subscription.
func (s *Subscription) TriggerCount() int64 {
	return s.triggered.Load()
}
