package events

import (
	"context"
	"sync"

	"github.com/mikeboe/research-agent/pkg/agent"
)

// Broker fans run events out to per-run subscribers. Publish never blocks:
// a subscriber that cannot keep up loses events rather than stalling the
// producer, and recovers from the next state snapshot.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan agent.Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan agent.Event]struct{}{},
	}
}

// Subscribe returns a channel receiving events for runID in publish order.
// The subscription ends, and the channel closes, when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan agent.Event {
	ch := make(chan agent.Event, 64)

	b.mu.Lock()
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = map[chan agent.Event]struct{}{}
	}
	b.subscribers[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if subs := b.subscribers[runID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, runID)
			}
		}
		// Close while holding the write lock: Publish sends under the read
		// lock, so the close cannot interleave with a send.
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers ev to every subscriber of its run. The send happens under
// the read lock; sends never block, so holding it is cheap, and it excludes
// the unsubscribe path from closing a channel mid-send.
func (b *Broker) Publish(ev agent.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
