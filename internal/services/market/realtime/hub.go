package realtime

import "sync"

// Subscriber receives events published to channels it subscribed to.
// Deliver must not block; slow consumers buffer or drop on their side.
type Subscriber interface {
	Deliver(event Event)
}

// Hub routes published events to per-channel subscriber sets.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
}

type channel struct {
	mu          sync.Mutex
	evicted     bool
	subscribers map[Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]*channel)}
}

// Subscribe adds the subscriber to a channel. Subscribing twice is a no-op.
// Takes effect for every publish that starts after Subscribe returns.
func (h *Hub) Subscribe(name string, sub Subscriber) {
	if h == nil || sub == nil || name == "" {
		return
	}
	for {
		ch := h.channel(name, true)
		ch.mu.Lock()
		if ch.evicted {
			// An unsubscribe emptied and removed this channel between the
			// map lookup and taking its lock. Fetch the replacement.
			ch.mu.Unlock()
			continue
		}
		ch.subscribers[sub] = struct{}{}
		ch.mu.Unlock()
		return
	}
}

// Unsubscribe removes the subscriber from a channel. Unsubscribing an absent
// subscriber is a no-op, so teardown paths can call it unconditionally.
func (h *Hub) Unsubscribe(name string, sub Subscriber) {
	if h == nil || sub == nil {
		return
	}
	ch := h.channel(name, false)
	if ch == nil {
		return
	}
	ch.mu.Lock()
	delete(ch.subscribers, sub)
	empty := len(ch.subscribers) == 0
	ch.mu.Unlock()

	if empty {
		h.mu.Lock()
		if current, ok := h.channels[name]; ok && current == ch {
			current.mu.Lock()
			if len(current.subscribers) == 0 {
				current.evicted = true
				delete(h.channels, name)
			}
			current.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber of its channel and
// returns the delivery count. Deliveries on one channel are serialized, so
// subscribers observe events in publish order. Channels with no subscribers
// drop the event; there is no replay.
func (h *Hub) Publish(event Event) int {
	if h == nil || event.Channel == "" {
		return 0
	}
	ch := h.channel(event.Channel, false)
	if ch == nil {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for sub := range ch.subscribers {
		sub.Deliver(event)
	}
	return len(ch.subscribers)
}

func (h *Hub) channel(name string, create bool) *channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[name]
	if !ok && create {
		ch = &channel{subscribers: make(map[Subscriber]struct{})}
		h.channels[name] = ch
	}
	return ch
}
