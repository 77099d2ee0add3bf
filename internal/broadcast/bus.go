// Package broadcast is the in-process publish/subscribe hub that tells
// listeners which cached collections changed.
package broadcast

import (
	"sync"
)

// Topic names a stream of events
type Topic string

const (
	// TopicStorage receives one event per cache mutation, whatever keys changed.
	TopicStorage Topic = "storage_update"
	// TopicNotification receives each newly created notification as payload.
	TopicNotification Topic = "new_notification"
)

// KeyTopic returns the topic that only fires when the given cache key changes
func KeyTopic(key string) Topic {
	return Topic("storage:" + key)
}

// Event is a single broadcast
type Event struct {
	Topic   Topic    `json:"topic"`
	Keys    []string `json:"keys,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

// Handler receives events synchronously on the publishing goroutine
type Handler func(Event)

type subscriber struct {
	topics  map[Topic]struct{}
	handler Handler
}

func (s *subscriber) wants(ev Event) bool {
	if _, ok := s.topics[ev.Topic]; ok {
		return true
	}
	for _, k := range ev.Keys {
		if _, ok := s.topics[KeyTopic(k)]; ok {
			return true
		}
	}
	return false
}

// Bus fans events out to subscribers
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscriber
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers handler for the given topics. The returned function
// removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(handler Handler, topics ...Topic) (cancel func()) {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = &subscriber{topics: set, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Channel subscribes with a buffered channel. Events that do not fit in the
// buffer are dropped for that subscriber only.
func (b *Bus) Channel(buffer int, topics ...Topic) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	cancel := b.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	}, topics...)

	return ch, func() {
		cancel()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}

// PublishStorage announces that the given cache keys changed
func (b *Bus) PublishStorage(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.publish(Event{Topic: TopicStorage, Keys: keys})
}

// PublishNotification announces a newly created notification
func (b *Bus) PublishNotification(payload any) {
	b.publish(Event{Topic: TopicNotification, Payload: payload})
}

func (b *Bus) publish(ev Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(ev) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(ev)
	}
}

// Len returns the number of live subscriptions
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
