package event

import (
	"reflect"
	"sync"
)

// topic holds the buffers and handlers for one event type.
type topic interface {
	swap()
	dispatch()
	pending() int
}

type typedTopic[T any] struct {
	front    []T
	back     []T
	handlers []func(T)
}

func (t *typedTopic[T]) swap() {
	t.front, t.back = t.back, t.front[:0]
}

func (t *typedTopic[T]) dispatch() {
	for _, ev := range t.front {
		for _, h := range t.handlers {
			h(ev)
		}
	}
}

func (t *typedTopic[T]) pending() int { return len(t.back) }

// Bus is a double-buffered event bus. Events emitted in tick N are readable
// in tick N+1. SwapBuffers() is called at tick start by the dispatch system.
type Bus struct {
	mu     sync.Mutex // only protects topic creation
	topics map[reflect.Type]topic
	order  []topic // creation order, so dispatch is deterministic
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[reflect.Type]topic),
	}
}

func topicFor[T any](b *Bus) *typedTopic[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[key]; ok {
		return t.(*typedTopic[T])
	}
	t := &typedTopic[T]{}
	b.topics[key] = t
	b.order = append(b.order, t)
	return t
}

// Emit queues an event into the back buffer (will be readable next tick).
func Emit[T any](b *Bus, event T) {
	t := topicFor[T](b)
	t.back = append(t.back, event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := topicFor[T](b)
	t.handlers = append(t.handlers, fn)
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	for _, t := range b.order {
		t.swap()
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for _, t := range b.order {
		t.dispatch()
	}
}

// Pending counts events waiting in the back buffers.
func (b *Bus) Pending() int {
	n := 0
	for _, t := range b.order {
		n += t.pending()
	}
	return n
}
