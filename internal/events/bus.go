// Package events carries transmission activity to live subscribers and to
// the on-disk history.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies an entry on the activity feed.
type Type string

const (
	// TypeTX is published after every transmission attempt, failed ones
	// included.
	TypeTX Type = "tx"
	// TypeRX is published for every picode candidate the receiver hears.
	TypeRX Type = "rx"
)

// Event is one entry on the activity feed, shaped for the JSON written to
// websocket subscribers and the history file.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Picode    string    `json:"picode,omitempty"`
	Pulses    int       `json:"pulses,omitempty"`
	Repeats   int       `json:"repeats,omitempty"`
	Seconds   int       `json:"seconds,omitempty"`
	Millis    int       `json:"millis,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Bus fans events out to subscribers over buffered channels. Publish never
// blocks: a subscriber that falls behind loses events rather than stalling
// a transmission.
type Bus struct {
	mu         sync.RWMutex
	subs       []chan Event
	bufferSize int
}

// NewBus creates a bus with the given buffer size per subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers a subscriber and returns its channel plus an
// unsubscribe function. The channel is closed by unsubscribing or by
// closing the bus.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subs = append(b.subs, ch)

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish stamps the event with an ID and timestamp and offers it to every
// subscriber, dropping it for any whose buffer is full.
func (b *Bus) Publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels and clears the subscriber list.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
