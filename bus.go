package pkstore

import (
	"slices"
	"sync"
)

// Listener receives changes synchronously, on the goroutine that made them.
type Listener func(chg Change)

// Bus delivers changes to subscribers in subscription order. The zero Bus is
// ready to use.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
}

type Subscription struct {
	bus      *Bus
	listener Listener
}

func (bus *Bus) Subscribe(listener Listener) *Subscription {
	if listener == nil {
		panic("nil listener")
	}
	sub := &Subscription{bus: bus, listener: listener}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = append(bus.subs, sub)
	return sub
}

// Unsubscribe stops future deliveries. Safe to call multiple times, and from
// within the listener itself.
func (sub *Subscription) Unsubscribe() {
	bus := sub.bus
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if i := slices.Index(bus.subs, sub); i >= 0 {
		// copy-on-write: Emit may be iterating over the old slice
		bus.subs = slices.Delete(slices.Clone(bus.subs), i, i+1)
	}
}

func (bus *Bus) Len() int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return len(bus.subs)
}

// Emit delivers chg to the subscribers registered at the moment of the call.
func (bus *Bus) Emit(chg Change) {
	bus.mu.Lock()
	subs := bus.subs
	bus.mu.Unlock()

	for _, sub := range subs {
		sub.listener(chg)
	}
}
