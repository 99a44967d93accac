// Package sessions manages the live match Loggers of a running app instance.
// Each match id maps to one independent Logger; the registry shares one KV
// backend between them and owns its lifetime.
package sessions

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"matchlog/match"
	"matchlog/matchtime"
	"matchlog/storage"
)

// Registry hands out per-match Loggers backed by a shared KV slot store
type Registry struct {
	mu      sync.Mutex
	kv      storage.KV
	clock   matchtime.Clock
	logger  *log.Logger
	loggers map[string]*match.Logger
}

// Option customizes a Registry
type Option func(*Registry)

// WithClock substitutes the wall clock used by every opened Logger
func WithClock(c matchtime.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger substitutes the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry wraps a KV backend. The registry takes ownership of kv and
// closes it in Close.
func NewRegistry(kv storage.KV, opts ...Option) *Registry {
	r := &Registry{
		kv:      kv,
		clock:   matchtime.SystemClock(),
		logger:  log.Default(),
		loggers: make(map[string]*match.Logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the Logger for matchID, opening (load-or-create) it on first
// use
func (r *Registry) Get(ctx context.Context, matchID string) *match.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[matchID]; ok {
		return l
	}
	l := match.Open(ctx, r.kv, matchID,
		match.WithClock(r.clock),
		match.WithLogger(r.logger),
	)
	r.loggers[matchID] = l
	return l
}

// Active returns the ids of the sessions opened so far, sorted
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.loggers))
	for id := range r.loggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Drop clears a session's events and forgets its Logger. Returns false when
// the persisted slot could not be cleared.
func (r *Registry) Drop(ctx context.Context, matchID string) bool {
	r.mu.Lock()
	l, ok := r.loggers[matchID]
	if ok {
		delete(r.loggers, matchID)
	}
	r.mu.Unlock()

	if !ok {
		// Not opened in this process; clear the slot directly.
		l = match.Open(ctx, r.kv, matchID, match.WithClock(r.clock), match.WithLogger(r.logger))
	}
	return l.ClearAllEvents(ctx)
}

// Close releases the shared KV backend
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers = make(map[string]*match.Logger)
	return r.kv.Close()
}
