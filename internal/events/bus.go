// Package events is the in-process event bus connecting the watch loop,
// the build worker and the dev server.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// Bus delivers typed events to channel subscribers. Publish blocks until
// every matching subscriber accepted the event or ctx ends. Nothing is durable.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]*subscription
	nextID atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

type subscription struct {
	deliver func(ctx context.Context, evt any) error
	close   func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscription)}
}

// Subscribe registers a channel for events of type T. When T is an interface,
// every published event implementing it is delivered; otherwise the concrete
// type must match. The returned func unsubscribes and closes the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	typ := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	// done unblocks pending deliveries before ch is closed, so a send never
	// races the close.
	var (
		mu        sync.RWMutex
		closed    bool
		done      = make(chan struct{})
		closeOnce sync.Once
	)
	closeCh := func() {
		closeOnce.Do(func() {
			close(done)
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}

	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscription{
		deliver: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", typ.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}
			mu.RLock()
			defer mu.RUnlock()
			if closed {
				return nil
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", typ.String()).
					Build()
			}
		},
		close: closeCh,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}
	if b.subs[typ] == nil {
		b.subs[typ] = make(map[uint64]*subscription)
	}
	b.subs[typ][id] = sub

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if m, ok := b.subs[typ]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, typ)
				}
			}
			b.mu.Unlock()
			closeCh()
		})
	}
}

// SubscriberCount returns the number of active subscribers for events of type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers evt to all matching subscribers.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.RuntimeError("event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)
	b.mu.RLock()
	var targets []*subscription
	for typ, m := range b.subs {
		if typ != evtType && (typ.Kind() != reflect.Interface || !evtType.Implements(typ)) {
			continue
		}
		for _, s := range m {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		b.mu.Lock()
		var all []*subscription
		for _, m := range b.subs {
			for _, s := range m {
				all = append(all, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscription)
		b.mu.Unlock()
		for _, s := range all {
			s.close()
		}
	})
}
