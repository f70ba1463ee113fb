package workspace

import "sync"

// Broadcaster fans workspace updates out to live subscribers.
// Each subscriber holds at most one pending update; a lagging subscriber
// skips straight to the newest.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Update]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its update channel.
func (b *Broadcaster) Subscribe() chan Update {
	ch := make(chan Update, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers u to all subscribers, replacing any update they have not
// read yet.
func (b *Broadcaster) Publish(u Update) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
	b.mu.Unlock()
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll unsubscribes everyone.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
