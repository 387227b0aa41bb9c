package pubsub

import (
	"context"
	"sync"
)

// MemoryPubSub is an in-process PubSub for single-instance deployments.
type MemoryPubSub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryPubSub creates an in-process bus with the given per-subscriber buffer.
func NewMemoryPubSub(buffer int) *MemoryPubSub {
	if buffer <= 0 {
		buffer = 1
	}
	return &MemoryPubSub{
		buffer: buffer,
		subs:   make(map[string]map[*memorySubscription]struct{}),
	}
}

type memorySubscription struct {
	bus     *MemoryPubSub
	channel string
	events  chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Events() <-chan *Event { return s.events }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if set, ok := s.bus.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.channel)
			}
		}
		close(s.events)
		close(s.done)
	})
	return nil
}

// Publish delivers the event to every current subscriber of channel.
// Subscribers whose buffer is full miss the event.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subs[channel] {
		select {
		case sub.events <- event:
		default:
			// Channel full, skip message
		}
	}
	return nil
}

// Subscribe registers a subscriber that lives until Close or ctx ends.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		bus:     m,
		channel: channel,
		events:  make(chan *Event, m.buffer),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := m.subs[channel]
	if !ok {
		set = make(map[*memorySubscription]struct{})
		m.subs[channel] = set
	}
	set[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Close drops every subscriber.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	m.closed = true
	var all []*memorySubscription
	for _, set := range m.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	return nil
}

var _ PubSub = (*MemoryPubSub)(nil)
