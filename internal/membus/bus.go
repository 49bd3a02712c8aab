// Package membus is a minimal in-memory topic bus used by the demos and
// tests. It carries string headers alongside each payload, which is all the
// SDK needs to exercise trace propagation; real transports live outside this
// repository.
package membus

import (
	"errors"
	"sync"
	"time"
)

// Message is one bus delivery. Headers carry trace context and platform
// correlation keys.
type Message struct {
	Topic       string
	Key         string
	Payload     []byte
	Headers     map[string]string
	PublishedAt time.Time
}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("membus: bus closed")

// Bus fans messages out to every subscriber of a topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan Message)}
}

// Subscribe registers a buffered subscription to a topic. The returned cancel
// function removes the subscription and closes its channel.
func (b *Bus) Subscribe(topic string, buffer int) (<-chan Message, func()) {
	ch := make(chan Message, buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers msg to every subscriber of its topic. Delivery blocks when
// a subscriber's buffer is full; slow consumers slow the publisher, which is
// acceptable for a demo transport.
func (b *Bus) Publish(msg Message) error {
	if msg.Headers == nil {
		msg.Headers = map[string]string{}
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs[msg.Topic] {
		ch <- msg
	}
	return nil
}

// Close marks the bus closed and closes every subscription channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan Message)
}
