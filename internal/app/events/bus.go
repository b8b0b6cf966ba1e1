// Package events provides the in-process notification bus. Publication is
// fire-and-forget: services never block on subscriber completion.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Topics emitted by the access layer services.
const (
	TopicUserAuthenticated = "user:authenticated"
	TopicUserLogout        = "user:logout"
	TopicNFTPurchased      = "nft:purchased"
	TopicTokensPurchased   = "tokens:purchased"
	TopicTokensSpent       = "tokens:spent"
)

// Event is a published notification.
type Event struct {
	Topic     string
	Source    string
	Data      any
	Timestamp time.Time
}

// Handler consumes events. Handlers run on their own goroutine; returning
// an error only affects the handler itself.
type Handler func(ctx context.Context, event Event) error

// Subscription can detach a handler from its topic.
type Subscription interface {
	Unsubscribe()
}

// Bus fans events out to topic subscribers.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[string][]subscription
	closed      bool
}

type subscription struct {
	id      int
	name    string
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// Publish delivers the event to every subscriber of the topic, each on its
// own goroutine.
func (b *Bus) Publish(ctx context.Context, topic, source string, data any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	subs := make([]subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	event := Event{Topic: topic, Source: source, Data: data, Timestamp: time.Now().UTC()}
	for _, sub := range subs {
		go func(s subscription) {
			_ = s.handler(ctx, event)
		}(sub)
	}
	return nil
}

// Subscribe attaches a named handler to a topic.
func (b *Bus) Subscribe(topic, name string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", topic)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("event bus is closed")
	}

	b.nextID++
	sub := subscription{id: b.nextID, name: name, handler: handler}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	return &busSubscription{bus: b, topic: topic, id: sub.id}, nil
}

// Close drops all subscribers and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = make(map[string][]subscription)
}

func (b *Bus) unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type busSubscription struct {
	bus   *Bus
	topic string
	id    int
}

func (s *busSubscription) Unsubscribe() {
	s.bus.unsubscribe(s.topic, s.id)
}
