// Package live turns store change notifications into push-based query
// results.
//
// A store owns a Tracker and calls Notify after every committed write with
// the tables it touched. Query re-runs a fetch whenever one of its tables is
// notified, and Switch re-targets a derived query when an upstream key
// changes.
package live

import "sync"

// Table names a set of records whose changes are tracked together.
type Table string

// Tracker fans out table invalidations to subscribers. Notifications are
// coalesced: a subscriber that has not yet consumed a pending signal does not
// queue a second one.
type Tracker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	tables map[Table]struct{}
	ch     chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]*subscription)}
}

// Subscribe returns a channel signalled whenever any of the given tables
// changes, and a function that removes the subscription.
func (t *Tracker) Subscribe(tables ...Table) (<-chan struct{}, func()) {
	sub := &subscription{
		tables: make(map[Table]struct{}, len(tables)),
		ch:     make(chan struct{}, 1),
	}
	for _, tb := range tables {
		sub.tables[tb] = struct{}{}
	}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = sub
	t.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// Notify signals every subscriber watching at least one of the tables.
func (t *Tracker) Notify(tables ...Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		if !sub.watches(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (s *subscription) watches(tables []Table) bool {
	for _, tb := range tables {
		if _, ok := s.tables[tb]; ok {
			return true
		}
	}
	return false
}
