// Package pubsub is a small typed in-process publish/subscribe primitive.
package pubsub

import "sync"

// Topic delivers every published value to the subscribers registered at
// publish time. Handlers run synchronously on the publishing goroutine and
// must not block.
type Topic[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(T)
}

// NewTopic creates an empty topic
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// Publish delivers v to all current subscribers
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	handlers := make([]func(T), 0, len(t.subs))
	for _, fn := range t.subs {
		handlers = append(handlers, fn)
	}
	t.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Len returns the number of subscribers
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
