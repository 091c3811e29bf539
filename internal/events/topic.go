// Package events provides a small typed publish/subscribe primitive used to
// connect the audio, face, scroll and position components without callbacks
// threaded through constructors.
package events

import (
	"slices"
	"sync"
)

// Handler receives a published value.
type Handler[T any] func(T)

// Topic fans a value out to every subscriber. Publish is synchronous: when it
// returns, every handler registered before the call has run.
type Topic[T any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler[T]
	last     T
	hasLast  bool
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{handlers: make(map[int]Handler[T])}
}

// Subscribe registers h and returns a function that removes it.
func (t *Topic[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = h
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.handlers, id)
			t.mu.Unlock()
		})
	}
}

// Publish delivers v to all current subscribers in registration order.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	t.last = v
	t.hasLast = true
	ids := make([]int, 0, len(t.handlers))
	for id := range t.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handler[T], len(ids))
	for i, id := range ids {
		hs[i] = t.handlers[id]
	}
	t.mu.Unlock()

	for _, h := range hs {
		h(v)
	}
}

// Last returns the most recently published value.
func (t *Topic[T]) Last() (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}

// Chan adapts the topic to a buffered channel for consumers that select on
// updates (the bubbletea program waits on these). When the buffer is full the
// oldest pending value is dropped so a slow reader always sees the latest one.
func (t *Topic[T]) Chan(size int) (<-chan T, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan T, size)
	var mu sync.Mutex
	closed := false
	unsub := t.Subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		for {
			select {
			case ch <- v:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}
