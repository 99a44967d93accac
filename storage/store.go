package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"matchlog/eventlog"
	"matchlog/matchtime"
)

// ErrPersistenceWriteFailed is returned when a mutation could not be made
// durable. The in-memory state is left at its pre-mutation value; the caller
// may retry or surface a "couldn't save" notice.
var ErrPersistenceWriteFailed = errors.New("storage: persistence write failed")

// Store is the sole owner of the authoritative in-memory event list and the
// sequence counter; all mutation passes through it. Every mutating call
// builds a new list (copy-on-write), persists the full snapshot, and only
// then commits the new list and notifies subscribers - so a failed
// persistence write leaves the previously-visible state completely unchanged.
type Store struct {
	mu sync.RWMutex

	matchID      string
	events       []*eventlog.Event
	byID         map[string]int // event id -> position in events
	lastSeq      uint64
	matchStartMS int64 // anchor for MatchTime; 0 until a MATCH_START is logged

	adapter   *Adapter
	listeners *listenerSet
	clock     matchtime.Clock
	logger    *log.Logger
}

// StoreOption customizes a Store at Open time
type StoreOption func(*Store)

// WithClock substitutes the wall clock (tests)
func WithClock(c matchtime.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithLogger substitutes the logger
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Open creates the store for one match session and rehydrates it from the
// durable slot. Corrupted persisted state degrades to an empty store; Open
// itself never fails.
func Open(ctx context.Context, kv KV, matchID string, opts ...StoreOption) *Store {
	s := &Store{
		matchID:   matchID,
		events:    []*eventlog.Event{},
		byID:      map[string]int{},
		listeners: newListenerSet(),
		clock:     matchtime.SystemClock(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.adapter = NewAdapter(kv, matchID, s.clock, s.logger)

	if snap := s.adapter.Load(ctx); snap != nil {
		events := snap.Events
		if events == nil {
			events = []*eventlog.Event{}
		}
		s.events = events
		s.reindex()
		s.lastSeq = lastSequence(events)
		if snap.Metadata.LastSequence > s.lastSeq {
			s.lastSeq = snap.Metadata.LastSequence
		}
		s.matchStartMS = findMatchStart(events)
	}
	return s
}

// AppendOption adjusts a single append
type AppendOption func(*appendConfig)

type appendConfig struct {
	timestampMS int64
	id          string
	period      int
	relatedID   string
}

// At supplies an explicit timestamp for backdated or corrected entries
func At(timestampMS int64) AppendOption {
	return func(c *appendConfig) { c.timestampMS = timestampMS }
}

// WithID supplies the event id, making repeated appends an idempotent replace
func WithID(id string) AppendOption {
	return func(c *appendConfig) { c.id = id }
}

// InPeriod tags the event with a match period number
func InPeriod(n int) AppendOption {
	return func(c *appendConfig) { c.period = n }
}

// RelatedTo links the event to an earlier one it corrects or pairs with
func RelatedTo(id string) AppendOption {
	return func(c *appendConfig) { c.relatedID = id }
}

// Append validates, sequences and persists a new event. The returned event
// is the stored record; callers must not mutate it. Fails with
// eventlog.ErrInvalidEventType, *eventlog.ValidationError or
// ErrPersistenceWriteFailed; in every failure case the store is unchanged.
func (s *Store) Append(ctx context.Context, typ eventlog.EventType, data map[string]interface{}, opts ...AppendOption) (*eventlog.Event, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", eventlog.ErrInvalidEventType, typ)
	}

	var cfg appendConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()

	ts := cfg.timestampMS
	if ts == 0 {
		ts = s.clock.Now().UnixMilli()
	}

	ev := &eventlog.Event{
		ID:             cfg.id,
		Type:           typ,
		Timestamp:      ts,
		Sequence:       s.lastSeq + 1,
		PeriodNumber:   cfg.period,
		RelatedEventID: cfg.relatedID,
		Data:           copyData(data),
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	// A match-start event (re)anchors the match clock to its own timestamp.
	if typ == eventlog.MatchStart {
		ev.MatchTime = "00:00"
	} else {
		ev.MatchTime = matchtime.Format(ts, s.matchStartMS)
	}

	if problems := eventlog.ValidateEvent(ev); len(problems) > 0 {
		s.mu.Unlock()
		return nil, &eventlog.ValidationError{EventID: ev.ID, Problems: problems}
	}

	var next []*eventlog.Event
	replaced, exists := s.byID[ev.ID]
	if exists {
		// Idempotent replace: a caller-supplied id that already exists
		// swaps the record in place, keeping its sequence slot.
		ev.Sequence = s.events[replaced].Sequence
		next = s.cloneEvents()
		next[replaced] = ev
	} else {
		next = make([]*eventlog.Event, len(s.events), len(s.events)+1)
		copy(next, s.events)
		next = append(next, ev)
	}

	scorers, corrections := deriveAux(next)
	if !s.adapter.Save(ctx, next, scorers, corrections) {
		s.mu.Unlock()
		return nil, ErrPersistenceWriteFailed
	}

	s.events = next
	s.reindex()
	if !exists {
		s.lastSeq = ev.Sequence
	}
	if typ == eventlog.MatchStart {
		s.matchStartMS = ts
	}
	n := s.notification(NotifyEventsSaved)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return ev, nil
}

// RemoveByID hard-deletes one event. Returns false when the id is absent
// (an expected outcome, not an error) or when the deletion could not be
// persisted.
func (s *Store) RemoveByID(ctx context.Context, id string) bool {
	s.mu.Lock()

	pos, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	next := make([]*eventlog.Event, 0, len(s.events)-1)
	next = append(next, s.events[:pos]...)
	next = append(next, s.events[pos+1:]...)

	scorers, corrections := deriveAux(next)
	if !s.adapter.Save(ctx, next, scorers, corrections) {
		s.mu.Unlock()
		return false
	}

	removedStart := s.events[pos].Type == eventlog.MatchStart
	s.events = next
	s.reindex()
	if removedStart {
		s.matchStartMS = findMatchStart(next)
	}
	n := s.notification(NotifyEventRemoved)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return true
}

// MarkUndone logically retracts an event while physically retaining it.
// An empty reason defaults to "user_action".
func (s *Store) MarkUndone(ctx context.Context, id, reason string) bool {
	if reason == "" {
		reason = "user_action"
	}

	s.mu.Lock()

	pos, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	undone := s.events[pos].Clone()
	undone.Undone = true
	undone.UndoTimestamp = s.clock.Now().UnixMilli()
	undone.UndoReason = reason

	next := s.cloneEvents()
	next[pos] = undone

	scorers, corrections := deriveAux(next)
	if !s.adapter.Save(ctx, next, scorers, corrections) {
		s.mu.Unlock()
		return false
	}

	s.events = next
	n := s.notification(NotifyEventsSaved)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return true
}

// PatchData shallow-merges partial into the event's data map, leaving type,
// timestamp, sequence and undone state untouched. This is the mechanism for
// score-history rewriting.
func (s *Store) PatchData(ctx context.Context, id string, partial map[string]interface{}) bool {
	s.mu.Lock()

	pos, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	patched := s.events[pos].Clone()
	if patched.Data == nil {
		patched.Data = make(map[string]interface{}, len(partial))
	}
	for k, v := range partial {
		patched.Data[k] = v
	}

	next := s.cloneEvents()
	next[pos] = patched

	scorers, corrections := deriveAux(next)
	if !s.adapter.Save(ctx, next, scorers, corrections) {
		s.mu.Unlock()
		return false
	}

	s.events = next
	n := s.notification(NotifyEventsSaved)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return true
}

// Clear hard-resets the store and its persisted slot to empty
func (s *Store) Clear(ctx context.Context) bool {
	s.mu.Lock()

	next := []*eventlog.Event{}
	if !s.adapter.Save(ctx, next, nil, nil) {
		s.mu.Unlock()
		return false
	}

	s.events = next
	s.byID = map[string]int{}
	s.lastSeq = 0
	s.matchStartMS = 0
	n := s.notification(NotifyEventsCleared)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return true
}

// ReplaceAll swaps in a rebuilt event list, persisting it first. Used by the
// opt-in recovery path after a salvage; the list must already be
// chronologically and sequence valid.
func (s *Store) ReplaceAll(ctx context.Context, events []*eventlog.Event) bool {
	if !eventlog.ValidateSequence(events) {
		return false
	}

	s.mu.Lock()

	next := make([]*eventlog.Event, len(events))
	copy(next, events)

	scorers, corrections := deriveAux(next)
	if !s.adapter.Save(ctx, next, scorers, corrections) {
		s.mu.Unlock()
		return false
	}

	s.events = next
	s.reindex()
	s.lastSeq = lastSequence(next)
	s.matchStartMS = findMatchStart(next)
	n := s.notification(NotifyEventsSaved)
	s.mu.Unlock()

	s.listeners.notify(s.logger, n)
	return true
}

// QueryOptions filter a read over the in-memory list
type QueryOptions struct {
	IncludeUndone bool
	EventTypes    []eventlog.EventType
	StartTime     int64 // inclusive, ms since epoch; 0 = unbounded
	EndTime       int64 // inclusive, ms since epoch; 0 = unbounded
}

// Query is a pure filter over the in-memory list; it never touches
// persistence. Undone events are excluded unless IncludeUndone is set.
func (s *Store) Query(opts QueryOptions) []*eventlog.Event {
	var typeSet map[eventlog.EventType]struct{}
	if len(opts.EventTypes) > 0 {
		typeSet = make(map[eventlog.EventType]struct{}, len(opts.EventTypes))
		for _, t := range opts.EventTypes {
			typeSet[t] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*eventlog.Event, 0, len(s.events))
	for _, e := range s.events {
		if e.Undone && !opts.IncludeUndone {
			continue
		}
		if typeSet != nil {
			if _, ok := typeSet[e.Type]; !ok {
				continue
			}
		}
		if opts.StartTime > 0 && e.Timestamp < opts.StartTime {
			continue
		}
		if opts.EndTime > 0 && e.Timestamp > opts.EndTime {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetByID returns the event or nil when absent; undone events are returned
func (s *Store) GetByID(id string) *eventlog.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos, ok := s.byID[id]; ok {
		return s.events[pos]
	}
	return nil
}

// GetAll returns the full list including undone events, for recovery,
// debugging and listener payloads
func (s *Store) GetAll() []*eventlog.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneEvents()
}

// Subscribe registers a listener for store mutations and returns its
// unsubscribe function
func (s *Store) Subscribe(fn ListenerFunc) func() {
	return s.listeners.add(fn)
}

// MatchID returns the session's match identifier
func (s *Store) MatchID() string { return s.matchID }

// MatchStartMS returns the match-start anchor, 0 before the match started
func (s *Store) MatchStartMS() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchStartMS
}

// LastSequence returns the most recently assigned sequence number
func (s *Store) LastSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// RawSnapshot exposes the persisted bytes for the opt-in recovery tooling
func (s *Store) RawSnapshot(ctx context.Context) ([]byte, bool) {
	return s.adapter.Raw(ctx)
}

// notification builds the payload under the lock so it reflects exactly the
// committed state
func (s *Store) notification(kind string) Notification {
	return Notification{Kind: kind, MatchID: s.matchID, Events: s.cloneEvents()}
}

func (s *Store) cloneEvents() []*eventlog.Event {
	cp := make([]*eventlog.Event, len(s.events))
	copy(cp, s.events)
	return cp
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.events))
	for i, e := range s.events {
		s.byID[e.ID] = i
	}
}

func copyData(data map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(data))
	for k, v := range data {
		cp[k] = v
	}
	return cp
}

// findMatchStart returns the anchor timestamp: the first active match-start
// event in stored order
func findMatchStart(events []*eventlog.Event) int64 {
	for _, e := range events {
		if !e.Undone && e.Type == eventlog.MatchStart {
			return e.Timestamp
		}
	}
	return 0
}

// deriveAux recomputes the snapshot's auxiliary maps from the event list:
// goal tallies per scorer and the correction links between events.
func deriveAux(events []*eventlog.Event) (map[string]int, map[string]string) {
	scorers := map[string]int{}
	corrections := map[string]string{}
	for _, e := range events {
		if e.Type == eventlog.GoalCorrected && e.RelatedEventID != "" {
			corrections[e.ID] = e.RelatedEventID
		}
		if e.Undone || e.Type != eventlog.GoalScored {
			continue
		}
		if scorer, ok := e.Data["scorerId"].(string); ok && scorer != "" {
			scorers[scorer]++
		}
	}
	return scorers, corrections
}
