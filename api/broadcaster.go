package api

import (
	"sync"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	// EventTypeCompile announces a freshly compiled batch
	EventTypeCompile EventType = "compile"
	// EventTypeProgress reports benchmark trials completed so far
	EventTypeProgress EventType = "progress"
	// EventTypeResult carries a finished benchmark summary
	EventTypeResult EventType = "result"
)

// BroadcastEvent represents a broadcast event sent to WebSocket clients
type BroadcastEvent struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Data      map[string]any `json:"data"`
}

// Broadcaster fans events out to every subscribed WebSocket client. Slow
// clients are skipped rather than allowed to stall the producers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan BroadcastEvent]bool
	closed  bool
}

// NewBroadcaster creates a broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan BroadcastEvent]bool)}
}

// Subscribe registers a new client channel
func (b *Broadcaster) Subscribe() chan BroadcastEvent {
	ch := make(chan BroadcastEvent, 256)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = true
	return ch
}

// Unsubscribe removes a client channel and closes it
func (b *Broadcaster) Unsubscribe(ch chan BroadcastEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[ch] {
		delete(b.clients, ch)
		close(ch)
	}
}

// Broadcast delivers an event to every subscriber without blocking
func (b *Broadcaster) Broadcast(event BroadcastEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
			// Client buffer full; drop the event for that client.
		}
	}
}

// subscriberCount returns the number of live subscriptions
func (b *Broadcaster) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every subscriber
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
