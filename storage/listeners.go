package storage

import (
	"sync"

	"github.com/charmbracelet/log"

	"matchlog/eventlog"
)

// Notification kinds delivered to subscribers after each mutation
const (
	NotifyEventsSaved   = "events_saved"
	NotifyEventRemoved  = "event_removed"
	NotifyEventsCleared = "events_cleared"
)

// Notification carries the mutation kind and the full post-mutation event
// list (undone events included). Subscribers must treat Events as read-only.
type Notification struct {
	Kind    string
	MatchID string
	Events  []*eventlog.Event
}

// ListenerFunc receives store notifications synchronously, in subscription
// order, after persistence has succeeded
type ListenerFunc func(Notification)

type listenerEntry struct {
	id int
	fn ListenerFunc
}

// listenerSet keeps subscribers in subscription order and isolates each one
// from the others' failures.
type listenerSet struct {
	mu      sync.Mutex
	nextID  int
	entries []listenerEntry
}

func newListenerSet() *listenerSet {
	return &listenerSet{}
}

// add registers fn and returns an unsubscribe function. Unsubscribing twice
// is harmless.
func (s *listenerSet) add(fn ListenerFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.entries = append(s.entries, listenerEntry{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.entries {
			if e.id == id {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return
			}
		}
	}
}

// notify fans out to every current subscriber. A panicking subscriber is
// logged and skipped; it never prevents the remaining subscribers from being
// notified and never propagates to the mutation that triggered the fan-out.
func (s *listenerSet) notify(logger *log.Logger, n Notification) {
	s.mu.Lock()
	entries := make([]listenerEntry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event listener panicked", "match", n.MatchID, "kind", n.Kind, "panic", r)
				}
			}()
			e.fn(n)
		}()
	}
}
