package match

import (
	"context"

	"github.com/charmbracelet/log"

	"matchlog/corrections"
	"matchlog/eventlog"
	"matchlog/matchtime"
	"matchlog/recovery"
	"matchlog/stats"
	"matchlog/storage"
)

// Logger is the per-match facade over the event store: the operation set the
// coaching UI and derived-stats consumers talk to. One Logger owns one match
// session's store; independent matches get independent Loggers.
type Logger struct {
	matchID string
	store   *storage.Store
	clock   matchtime.Clock
	logger  *log.Logger
}

// Option customizes a Logger at Open time
type Option func(*Logger)

// WithClock substitutes the wall clock (tests)
func WithClock(c matchtime.Clock) Option {
	return func(l *Logger) { l.clock = c }
}

// WithLogger substitutes the diagnostic logger
func WithLogger(lg *log.Logger) Option {
	return func(l *Logger) { l.logger = lg }
}

// Open loads the match session from the durable slot, or creates an empty
// one. Corrupted persisted state degrades to an empty session; Open never
// fails.
func Open(ctx context.Context, kv storage.KV, matchID string, opts ...Option) *Logger {
	l := &Logger{
		matchID: matchID,
		clock:   matchtime.SystemClock(),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.store = storage.Open(ctx, kv, matchID,
		storage.WithClock(l.clock),
		storage.WithLogger(l.logger),
	)
	return l
}

// MatchID returns the session identifier
func (l *Logger) MatchID() string { return l.matchID }

// Store exposes the underlying event store for advanced callers
func (l *Logger) Store() *storage.Store { return l.store }

// LogEvent appends a match occurrence. Fails on an invalid type, a
// validation failure, or an unpersistable write; the log is unchanged on
// failure.
func (l *Logger) LogEvent(ctx context.Context, typ eventlog.EventType, data map[string]interface{}, opts ...storage.AppendOption) (*eventlog.Event, error) {
	return l.store.Append(ctx, typ, data, opts...)
}

// GetMatchEvents returns the filtered active view of the log
func (l *Logger) GetMatchEvents(opts storage.QueryOptions) []*eventlog.Event {
	return l.store.Query(opts)
}

// GetEventByID returns one event (undone included) or nil
func (l *Logger) GetEventByID(id string) *eventlog.Event {
	return l.store.GetByID(id)
}

// GetAllEvents returns the full list including undone events
func (l *Logger) GetAllEvents() []*eventlog.Event {
	return l.store.GetAll()
}

// RemoveEvent hard-deletes an event. When the removed event was a goal, the
// frozen running totals of every later goal are rewritten in place so the
// score history stays consistent. Returns false when the id is absent.
func (l *Logger) RemoveEvent(ctx context.Context, id string) bool {
	removed := l.store.GetByID(id)
	if removed == nil {
		return false
	}
	if !l.store.RemoveByID(ctx, id) {
		return false
	}
	if removed.IsGoal() {
		l.rewriteGoalHistory(ctx)
	}
	return true
}

// MarkEventAsUndone logically retracts an event, retaining the record. Goal
// undos trigger the same score-history rewrite as removals.
func (l *Logger) MarkEventAsUndone(ctx context.Context, id, reason string) bool {
	target := l.store.GetByID(id)
	if target == nil {
		return false
	}
	if !l.store.MarkUndone(ctx, id, reason) {
		return false
	}
	if target.IsGoal() {
		l.rewriteGoalHistory(ctx)
	}
	return true
}

// UpdateEventData shallow-merges partial into the event's data
func (l *Logger) UpdateEventData(ctx context.Context, id string, partial map[string]interface{}) bool {
	return l.store.PatchData(ctx, id, partial)
}

// GetEffectivePlayingTime returns the milliseconds of actual play so far:
// wall-clock match time minus paused intervals, up to now for an ongoing
// match
func (l *Logger) GetEffectivePlayingTime() int64 {
	return matchtime.EffectivePlayingTime(l.store.GetAll(), l.clock.Now().UnixMilli())
}

// MatchTime renders a timestamp against the match-start anchor as "MM:SS"
func (l *Logger) MatchTime(timestampMS int64) string {
	return matchtime.Format(timestampMS, l.store.MatchStartMS())
}

// GoalScorers tallies active goals per scorer
func (l *Logger) GoalScorers() map[string]int {
	return stats.GoalScorers(l.store.GetAll())
}

// TimeInRole accumulates per-player milliseconds in each role
func (l *Logger) TimeInRole() map[string]map[string]int64 {
	return stats.TimeInRole(l.store.GetAll(), l.clock.Now().UnixMilli())
}

// ScoreTimeline recomputes the running score from the active goal events
func (l *Logger) ScoreTimeline() []stats.ScorePoint {
	return stats.ScoreTimeline(l.store.GetAll())
}

// ClearAllEvents hard-resets the session and its persisted slot
func (l *Logger) ClearAllEvents(ctx context.Context) bool {
	return l.store.Clear(ctx)
}

// AddListener subscribes to store mutations; the returned function
// unsubscribes
func (l *Logger) AddListener(fn storage.ListenerFunc) func() {
	return l.store.Subscribe(fn)
}

// Recover runs the opt-in salvage over the raw persisted blob and, when
// restore is set, replaces the session content with the salvaged list. This
// is distinct from normal load, which refuses corrupted data outright.
func (l *Logger) Recover(ctx context.Context, restore bool) ([]*eventlog.Event, *recovery.Report) {
	raw, found := l.store.RawSnapshot(ctx)
	if !found {
		return nil, &recovery.Report{}
	}
	salvaged, report := recovery.Salvage(raw)
	if restore && len(salvaged) > 0 {
		if !l.store.ReplaceAll(ctx, salvaged) {
			l.logger.Warn("salvage restore could not be persisted", "match", l.matchID)
		}
	}
	return salvaged, report
}

// rewriteGoalHistory plans and applies the running-total patches after a
// goal left the active set
func (l *Logger) rewriteGoalHistory(ctx context.Context) {
	plan := corrections.PlanGoalRewrite(l.store.GetAll())
	if plan.Empty() {
		return
	}
	applied, ok := corrections.Apply(ctx, l.store, plan)
	if !ok {
		l.logger.Warn("goal history rewrite incomplete",
			"match", l.matchID, "applied", applied, "planned", len(plan.Patches))
	}
}
