// Package event is a small synchronous publish/subscribe bus keyed by the Go type of the event.
package event

import (
	"reflect"
	"slices"
	"sync"
)

// Bus dispatches events to the handlers subscribed to their type. Handlers run synchronously on
// the publishing goroutine, in subscription order, and outside any bus lock, so a handler may
// publish further events or subscribe and unsubscribe freely.
//
// The zero Bus is not usable; create one with NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]subscription // Copy-on-write, never mutated in place
	nextID   uint64
}

type subscription struct {
	id uint64
	fn any // func(E) for the key type E
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]subscription)}
}

// Subscribe registers fn for events of type E and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func Subscribe[E any](b *Bus, fn func(E)) (unsubscribe func()) {
	key := reflect.TypeFor[E]()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	subs := b.handlers[key]
	b.handlers[key] = append(subs[:len(subs):len(subs)], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(key, id) })
	}
}

// Publish calls every handler subscribed to E with e. Handlers subscribed or removed while a
// Publish is running take effect from the next Publish.
func Publish[E any](b *Bus, e E) {
	b.mu.RLock()
	subs := b.handlers[reflect.TypeFor[E]()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn.(func(E))(e)
	}
}

// Len returns the number of handlers subscribed to E.
func Len[E any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[reflect.TypeFor[E]()])
}

func (b *Bus) unsubscribe(key reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[key]
	i := slices.IndexFunc(subs, func(s subscription) bool { return s.id == id })
	if i < 0 {
		return
	}
	if len(subs) == 1 {
		delete(b.handlers, key)
		return
	}
	b.handlers[key] = slices.Delete(slices.Clone(subs), i, i+1)
}
