// Package event provides a multi-subscriber notification bus.
package event

import "sync"

// Bus fans out published values to every subscriber in subscription order.
// Handlers run on the publishing goroutine and must not block.
type Bus[T any] struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(T)
	order    []int
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.order = append(b.order, id)
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(v)
	}
}
