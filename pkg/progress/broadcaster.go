package progress

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBufferSize bounds the per scan replay buffer.
	DefaultBufferSize = 1000
	// subscriberSlack is extra channel capacity beyond the replayed events.
	subscriberSlack = 256
)

type subscriber struct {
	scanID string
	ch     chan Event
	closed bool
}

// Broadcaster fans scan events out to subscribers and keeps a bounded per
// scan buffer so late subscribers can replay what they missed. Delivery is
// best effort: a subscriber that cannot keep up is dropped.
type Broadcaster struct {
	mu          sync.Mutex
	buffers     map[string][]Event
	subscribers map[string][]*subscriber
	bufferSize  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		buffers:     make(map[string][]Event),
		subscribers: make(map[string][]*subscriber),
		bufferSize:  DefaultBufferSize,
	}
}

// Publish buffers the event and delivers it to every subscriber of its scan.
func (b *Broadcaster) Publish(event Event) {
	if event.ScanID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	buffer := append(b.buffers[event.ScanID], event)
	if len(buffer) > b.bufferSize {
		buffer = buffer[len(buffer)-b.bufferSize:]
	}
	b.buffers[event.ScanID] = buffer

	kept := b.subscribers[event.ScanID][:0]
	for _, sub := range b.subscribers[event.ScanID] {
		select {
		case sub.ch <- event:
			kept = append(kept, sub)
		default:
			// Slow consumer, drop it rather than stall the scan
			log.Warn().Str("scan", event.ScanID).Msg("Dropping slow progress subscriber")
			sub.closed = true
			close(sub.ch)
		}
	}
	b.subscribers[event.ScanID] = kept
}

// Subscribe returns a channel that first replays the buffered events of the
// scan and then receives live ones. The returned cancel function must be
// called when the subscriber goes away.
func (b *Broadcaster) Subscribe(scanID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buffered := b.buffers[scanID]
	sub := &subscriber{
		scanID: scanID,
		ch:     make(chan Event, len(buffered)+subscriberSlack),
	}
	// Replay under the lock so no live event lands between history and
	// registration; capacity guarantees these sends cannot block.
	for _, event := range buffered {
		sub.ch <- event
	}
	b.subscribers[scanID] = append(b.subscribers[scanID], sub)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeSubscriber(sub)
	}
	return sub.ch, cancel
}

func (b *Broadcaster) removeSubscriber(sub *subscriber) {
	if sub.closed {
		return
	}
	subs := b.subscribers[sub.scanID]
	for i, candidate := range subs {
		if candidate == sub {
			b.subscribers[sub.scanID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	sub.closed = true
	close(sub.ch)
}

// Replay returns a copy of the buffered events for a scan.
func (b *Broadcaster) Replay(scanID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	buffered := b.buffers[scanID]
	events := make([]Event, len(buffered))
	copy(events, buffered)
	return events
}

// SubscriberCount reports how many subscribers a scan currently has.
func (b *Broadcaster) SubscriberCount(scanID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[scanID])
}

// Reset drops all buffers and disconnects every subscriber.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
	}
	b.buffers = make(map[string][]Event)
	b.subscribers = make(map[string][]*subscriber)
}
