package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchlog/eventlog"
)

// fakeClock is a settable wall clock
type fakeClock struct{ ms int64 }

func (c *fakeClock) Now() time.Time   { return time.UnixMilli(c.ms) }
func (c *fakeClock) advance(ms int64) { c.ms += ms }

// failingKV wraps a MemoryKV and fails writes on demand
type failingKV struct {
	*MemoryKV
	failSet bool
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func openTestStore(t *testing.T, kv KV, clock *fakeClock) *Store {
	t.Helper()
	return Open(context.Background(), kv, "m1", WithClock(clock), WithLogger(quietLogger()))
}

func TestAppendAssignsSequences(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	for want := uint64(1); want <= 3; want++ {
		ev, err := s.Append(ctx, eventlog.GoalScored, nil)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Sequence)
		assert.NotEmpty(t, ev.ID)
		clock.advance(1000)
	}
	assert.Equal(t, uint64(3), s.LastSequence())
	assert.Len(t, s.GetAll(), 3)
}

func TestAppendRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	_, err := s.Append(ctx, eventlog.EventType("HALFTIME_SHOW"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, eventlog.ErrInvalidEventType))

	// A rejected append changes nothing, so retrying identical input keeps
	// failing identically.
	_, err2 := s.Append(ctx, eventlog.EventType("HALFTIME_SHOW"), nil)
	require.Error(t, err2)
	assert.Empty(t, s.GetAll())
	assert.Equal(t, uint64(0), s.LastSequence())
}

func TestAppendAnchorsMatchTime(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	// Before any match start the clock has no anchor.
	early, err := s.Append(ctx, eventlog.GoalieAssignment, nil)
	require.NoError(t, err)
	assert.Equal(t, "00:00", early.MatchTime)

	clock.advance(5_000)
	start, err := s.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)
	assert.Equal(t, "00:00", start.MatchTime)
	assert.Equal(t, clock.ms, s.MatchStartMS())

	clock.advance(185_000)
	goal, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)
	assert.Equal(t, "03:05", goal.MatchTime)
}

func TestAppendWithExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	_, err := s.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)

	// Backdated entry: timestamp comes from the caller, not the clock.
	clock.advance(300_000)
	ev, err := s.Append(ctx, eventlog.GoalScored, nil, At(1_000_000+65_000))
	require.NoError(t, err)
	assert.Equal(t, int64(1_065_000), ev.Timestamp)
	assert.Equal(t, "01:05", ev.MatchTime)
}

func TestAppendIdempotentReplace(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	first, err := s.Append(ctx, eventlog.GoalScored, map[string]interface{}{"scorerId": "p7"}, WithID("fixed"))
	require.NoError(t, err)

	clock.advance(1000)
	second, err := s.Append(ctx, eventlog.GoalScored, map[string]interface{}{"scorerId": "p9"}, WithID("fixed"))
	require.NoError(t, err)

	// The replace keeps the original sequence slot and does not grow the log.
	assert.Equal(t, first.Sequence, second.Sequence)
	assert.Len(t, s.GetAll(), 1)
	assert.Equal(t, uint64(1), s.LastSequence())
	assert.Equal(t, "p9", s.GetByID("fixed").Data["scorerId"])
}

func TestMarkUndoneRetainsRecord(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	ev, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)

	clock.advance(42_000)
	require.True(t, s.MarkUndone(ctx, ev.ID, ""))

	undone := s.GetByID(ev.ID)
	require.NotNil(t, undone)
	assert.True(t, undone.Undone)
	assert.Equal(t, "user_action", undone.UndoReason)
	assert.Equal(t, clock.ms, undone.UndoTimestamp)
	assert.Equal(t, ev.Sequence, undone.Sequence)

	assert.Empty(t, s.Query(QueryOptions{}))
	assert.Len(t, s.Query(QueryOptions{IncludeUndone: true}), 1)

	assert.False(t, s.MarkUndone(ctx, "no-such-id", "whatever"))
}

func TestRemoveByID(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	start, err := s.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)
	clock.advance(1000)
	goal, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)

	assert.False(t, s.RemoveByID(ctx, "absent"))

	require.True(t, s.RemoveByID(ctx, goal.ID))
	assert.Nil(t, s.GetByID(goal.ID))
	assert.Len(t, s.GetAll(), 1)

	// Removing the match start drops the clock anchor.
	require.True(t, s.RemoveByID(ctx, start.ID))
	assert.Equal(t, int64(0), s.MatchStartMS())
}

func TestPatchDataPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	ev, err := s.Append(ctx, eventlog.GoalScored, map[string]interface{}{
		"scorerId": "p7", "homeScore": 2, "awayScore": 1,
	})
	require.NoError(t, err)

	require.True(t, s.PatchData(ctx, ev.ID, map[string]interface{}{"homeScore": 1, "awayScore": 0}))

	patched := s.GetByID(ev.ID)
	assert.Equal(t, ev.Type, patched.Type)
	assert.Equal(t, ev.Timestamp, patched.Timestamp)
	assert.Equal(t, ev.Sequence, patched.Sequence)
	assert.Equal(t, "p7", patched.Data["scorerId"], "untouched keys survive the merge")
	assert.Equal(t, 1, patched.Data["homeScore"])
	assert.Equal(t, 0, patched.Data["awayScore"])

	assert.False(t, s.PatchData(ctx, "absent", map[string]interface{}{"x": 1}))
}

func TestPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryKV: NewMemoryKV()}
	s := openTestStore(t, kv, &fakeClock{ms: 1_000_000})

	ev, err := s.Append(ctx, eventlog.GoalScored, map[string]interface{}{"scorerId": "p7"})
	require.NoError(t, err)

	kv.failSet = true

	_, err = s.Append(ctx, eventlog.GoalConceded, nil)
	assert.True(t, errors.Is(err, ErrPersistenceWriteFailed))
	assert.Len(t, s.GetAll(), 1)
	assert.Equal(t, uint64(1), s.LastSequence())

	assert.False(t, s.MarkUndone(ctx, ev.ID, "oops"))
	assert.False(t, s.GetByID(ev.ID).Undone)

	assert.False(t, s.PatchData(ctx, ev.ID, map[string]interface{}{"scorerId": "p9"}))
	assert.Equal(t, "p7", s.GetByID(ev.ID).Data["scorerId"])

	assert.False(t, s.RemoveByID(ctx, ev.ID))
	assert.NotNil(t, s.GetByID(ev.ID))

	assert.False(t, s.Clear(ctx))
	assert.Len(t, s.GetAll(), 1)

	// Once the backend recovers, mutations go through again.
	kv.failSet = false
	_, err = s.Append(ctx, eventlog.GoalConceded, nil)
	require.NoError(t, err)
	assert.Len(t, s.GetAll(), 2)
}

func TestReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	clock := &fakeClock{ms: 1_000_000}

	s1 := openTestStore(t, kv, clock)
	_, err := s1.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)
	clock.advance(60_000)
	goal, err := s1.Append(ctx, eventlog.GoalScored, map[string]interface{}{"scorerId": "p7"})
	require.NoError(t, err)
	clock.advance(1000)
	require.True(t, s1.MarkUndone(ctx, goal.ID, "wrong player"))

	s2 := openTestStore(t, kv, clock)
	require.Len(t, s2.GetAll(), 2)
	assert.Equal(t, uint64(2), s2.LastSequence())
	assert.Equal(t, int64(1_000_000), s2.MatchStartMS())

	restored := s2.GetByID(goal.ID)
	require.NotNil(t, restored)
	assert.True(t, restored.Undone)
	assert.Equal(t, "wrong player", restored.UndoReason)
	assert.Equal(t, "01:00", restored.MatchTime)
}

func TestCorruptSnapshotStartsFresh(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	clock := &fakeClock{ms: 1_000_000}

	s1 := openTestStore(t, kv, clock)
	_, err := s1.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)

	// Flip event bytes without breaking the JSON: the checksum no longer
	// matches and the whole snapshot is refused.
	raw, found, err := kv.Get(ctx, "match_log_m1")
	require.NoError(t, err)
	require.True(t, found)
	tampered := bytes.ReplaceAll(raw, []byte("GOAL_SCORED"), []byte("GOAL_SCOREX"))
	require.NotEqual(t, raw, tampered)
	require.NoError(t, kv.Set(ctx, "match_log_m1", tampered))

	s2 := openTestStore(t, kv, clock)
	assert.Empty(t, s2.GetAll())
	assert.Equal(t, uint64(0), s2.LastSequence())
}

func TestClearResetsEverything(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, kv, clock)

	_, err := s.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)
	clock.advance(1000)
	_, err = s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)

	require.True(t, s.Clear(ctx))
	assert.Empty(t, s.GetAll())
	assert.Equal(t, uint64(0), s.LastSequence())
	assert.Equal(t, int64(0), s.MatchStartMS())

	// The reset is durable.
	s2 := openTestStore(t, kv, clock)
	assert.Empty(t, s2.GetAll())
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	rebuilt := []*eventlog.Event{
		{ID: "a", Type: eventlog.MatchStart, Timestamp: 1_000_000, MatchTime: "00:00", Sequence: 1},
		{ID: "b", Type: eventlog.GoalScored, Timestamp: 1_060_000, MatchTime: "01:00", Sequence: 2},
	}
	require.True(t, s.ReplaceAll(ctx, rebuilt))
	assert.Len(t, s.GetAll(), 2)
	assert.Equal(t, uint64(2), s.LastSequence())
	assert.Equal(t, int64(1_000_000), s.MatchStartMS())

	outOfOrder := []*eventlog.Event{
		{ID: "a", Type: eventlog.MatchStart, Timestamp: 2_000_000, Sequence: 1},
		{ID: "b", Type: eventlog.GoalScored, Timestamp: 1_000_000, Sequence: 2},
	}
	assert.False(t, s.ReplaceAll(ctx, outOfOrder))
	assert.Len(t, s.GetAll(), 2, "a rejected replace changes nothing")
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{ms: 1_000_000}
	s := openTestStore(t, NewMemoryKV(), clock)

	_, err := s.Append(ctx, eventlog.MatchStart, nil)
	require.NoError(t, err)
	clock.advance(60_000)
	goal, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)
	clock.advance(60_000)
	_, err = s.Append(ctx, eventlog.Substitution, nil)
	require.NoError(t, err)

	byType := s.Query(QueryOptions{EventTypes: []eventlog.EventType{eventlog.GoalScored}})
	require.Len(t, byType, 1)
	assert.Equal(t, goal.ID, byType[0].ID)

	windowed := s.Query(QueryOptions{StartTime: 1_030_000, EndTime: 1_090_000})
	require.Len(t, windowed, 1)
	assert.Equal(t, goal.ID, windowed[0].ID)

	require.True(t, s.MarkUndone(ctx, goal.ID, ""))
	assert.Len(t, s.Query(QueryOptions{}), 2)
	assert.Len(t, s.Query(QueryOptions{IncludeUndone: true}), 3)
}

func TestListenerFanOutAndFaultIsolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	var got []Notification
	s.Subscribe(func(Notification) { panic("listener bug") })
	s.Subscribe(func(n Notification) { got = append(got, n) })
	calls := 0
	s.Subscribe(func(Notification) { calls++ })

	ev, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)

	// The panicking subscriber never blocks the others.
	require.Len(t, got, 1)
	assert.Equal(t, NotifyEventsSaved, got[0].Kind)
	assert.Equal(t, "m1", got[0].MatchID)
	require.Len(t, got[0].Events, 1)
	assert.Equal(t, ev.ID, got[0].Events[0].ID)
	assert.Equal(t, 1, calls)

	require.True(t, s.RemoveByID(ctx, ev.ID))
	require.Len(t, got, 2)
	assert.Equal(t, NotifyEventRemoved, got[1].Kind)
	assert.Empty(t, got[1].Events)

	require.True(t, s.Clear(ctx))
	require.Len(t, got, 3)
	assert.Equal(t, NotifyEventsCleared, got[2].Kind)
	assert.Equal(t, 3, calls)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	calls := 0
	unsubscribe := s.Subscribe(func(Notification) { calls++ })

	_, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe() // twice is harmless

	_, err = s.Append(ctx, eventlog.GoalConceded, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestListenerReentrancy(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, NewMemoryKV(), &fakeClock{ms: 1_000_000})

	// A subscriber reading back into the store must not deadlock.
	var seen int
	s.Subscribe(func(Notification) { seen = len(s.GetAll()) })

	_, err := s.Append(ctx, eventlog.GoalScored, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}
