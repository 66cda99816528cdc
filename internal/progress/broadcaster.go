package progress

import (
	"context"
	"sync"
)

const defaultListenerBuffer = 64

// Broadcaster is an in-process Emitter and Source. Messages go to the
// listeners registered for the owner at the time of the call; a listener
// whose buffer is full misses the message.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[string]map[chan string]struct{}
	buffer    int
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[string]map[chan string]struct{}),
		buffer:    defaultListenerBuffer,
	}
}

// Subscribe implements Source.
func (b *Broadcaster) Subscribe(owner string) (<-chan string, func(), error) {
	ch := make(chan string, b.buffer)

	b.mu.Lock()
	set, ok := b.listeners[owner]
	if !ok {
		set = make(map[chan string]struct{})
		b.listeners[owner] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners[owner], ch)
			if len(b.listeners[owner]) == 0 {
				delete(b.listeners, owner)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Emit implements Emitter.
func (b *Broadcaster) Emit(ctx context.Context, msg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.listeners[Owner(ctx)] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Listeners reports how many subscriptions are open for owner.
func (b *Broadcaster) Listeners(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[owner])
}
