// Package eventbus fans typed events out to subscriber channels.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the subscriber channel capacity used by NewTyped.
const DefaultBuffer = 8

// TypedBus is a type-safe publish/subscribe bus for events of type T.
// Publishing never blocks: an event is dropped for a subscriber whose
// channel is full, and counted.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	size    int
	closed  bool
	dropped atomic.Uint64
}

// NewTyped creates a bus with DefaultBuffer sized subscriber channels.
func NewTyped[T any]() *TypedBus[T] { return NewTypedBuffered[T](DefaultBuffer) }

// NewTypedBuffered creates a bus whose subscriber channels hold size events.
// A non-positive size selects DefaultBuffer.
func NewTypedBuffered[T any](size int) *TypedBus[T] {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &TypedBus[T]{size: size}
}

// Publish hands e to every subscriber that has room for it.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was
// full.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close, and immediately when the bus is already closed.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.size)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes sub and closes it. Unknown channels are ignored.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch != sub {
			continue
		}
		b.subs = append(b.subs[:i], b.subs[i+1:]...)
		close(ch)
		return
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
