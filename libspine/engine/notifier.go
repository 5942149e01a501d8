package engine

import (
	"strconv"
	"sync"
)

// KeyEvent names the event raised when key in database db gains data
func KeyEvent(db int, key string) string {
	return strconv.Itoa(db) + ":" + key
}

type waiter struct {
	ch chan struct{}
}

// Notifier lets blocking commands wait for named events. A notification
// wakes every current subscriber of the event; subscribers re-check the
// keyspace themselves, so spurious wake-ups are harmless.
type Notifier struct {
	mu      sync.Mutex
	waiters map[string]map[*waiter]struct{}
}

// NewNotifier creates a notifier with no subscribers
func NewNotifier() *Notifier {
	return &Notifier{waiters: make(map[string]map[*waiter]struct{})}
}

// Subscribe registers interest in events. The returned channel receives a
// value whenever one of them is notified. cancel must be called once the
// caller stops waiting.
func (n *Notifier) Subscribe(events ...string) (<-chan struct{}, func()) {
	w := &waiter{ch: make(chan struct{}, 1)}

	n.mu.Lock()
	for _, ev := range events {
		set, ok := n.waiters[ev]
		if !ok {
			set = make(map[*waiter]struct{})
			n.waiters[ev] = set
		}
		set[w] = struct{}{}
	}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for _, ev := range events {
				set := n.waiters[ev]
				delete(set, w)
				if len(set) == 0 {
					delete(n.waiters, ev)
				}
			}
		})
	}
	return w.ch, cancel
}

// Notify wakes the subscribers of event without blocking
func (n *Notifier) Notify(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for w := range n.waiters[event] {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// Waiting returns the number of subscribers of event
func (n *Notifier) Waiting(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.waiters[event])
}
