package storage

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"matchlog/eventlog"
	"matchlog/matchtime"
)

// Adapter translates between the in-memory event list and the durable
// snapshot slot. Every save rewrites the whole envelope with a fresh
// checksum; every load verifies integrity and chronology before the data is
// trusted. Corruption never surfaces as an error: a crashed session must not
// block the coach from continuing, so the adapter degrades to an empty
// snapshot and logs what it discarded.
type Adapter struct {
	kv      KV
	matchID string
	key     string
	clock   matchtime.Clock
	logger  *log.Logger

	// created is carried from the first persisted snapshot so the envelope
	// keeps its original creation time across rewrites.
	created int64
}

// NewAdapter binds a durable slot for one match
func NewAdapter(kv KV, matchID string, clock matchtime.Clock, logger *log.Logger) *Adapter {
	if clock == nil {
		clock = matchtime.SystemClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		kv:      kv,
		matchID: matchID,
		key:     "match_log_" + matchID,
		clock:   clock,
		logger:  logger,
	}
}

// Save builds the snapshot envelope and writes it to the slot. It returns
// false (not an error) on any storage or serialization failure; the caller
// treats false as "could not persist, abort this mutation".
func (a *Adapter) Save(ctx context.Context, events []*eventlog.Event, goalScorers map[string]int, corrections map[string]string) bool {
	nowMS := a.clock.Now().UnixMilli()
	if a.created == 0 {
		a.created = nowMS
	}
	if goalScorers == nil {
		goalScorers = map[string]int{}
	}
	if corrections == nil {
		corrections = map[string]string{}
	}

	snap := &Snapshot{
		MatchID:     a.matchID,
		Version:     SnapshotVersion,
		Created:     a.created,
		LastUpdated: nowMS,
		Events:      events,
		GoalScorers: goalScorers,
		Corrections: corrections,
		Metadata: SnapshotMetadata{
			EventCount:   len(events),
			LastSequence: lastSequence(events),
		},
	}

	checksum, err := SnapshotChecksum(snap)
	if err != nil {
		a.logger.Error("snapshot checksum failed", "match", a.matchID, "err", err)
		return false
	}
	snap.Checksum = checksum

	data, err := json.Marshal(snap)
	if err != nil {
		a.logger.Error("snapshot marshal failed", "match", a.matchID, "err", err)
		return false
	}
	if err := a.kv.Set(ctx, a.key, data); err != nil {
		a.logger.Error("snapshot write failed", "match", a.matchID, "err", err)
		return false
	}
	return true
}

// Load reads the slot and returns the validated snapshot. It returns nil when
// nothing has been stored yet (the empty-state case). Corrupted or
// chronologically invalid data is discarded: the caller gets a fresh empty
// snapshot rather than partial data, and the incident is logged.
func (a *Adapter) Load(ctx context.Context) *Snapshot {
	data, found, err := a.kv.Get(ctx, a.key)
	if err != nil {
		a.logger.Error("snapshot read failed, starting fresh", "match", a.matchID, "err", err)
		return newSnapshot(a.matchID, a.clock.Now().UnixMilli())
	}
	if !found {
		// Nothing under the current key; a superseded install may still
		// hold a v1 envelope worth upgrading.
		if legacy := a.loadLegacy(ctx); legacy != nil {
			return legacy
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		a.logger.Warn("snapshot corrupted (unparseable), starting fresh", "match", a.matchID, "err", err)
		return newSnapshot(a.matchID, a.clock.Now().UnixMilli())
	}

	if !VerifySnapshotChecksum(&snap) {
		a.logger.Warn("snapshot checksum mismatch, starting fresh", "match", a.matchID)
		return newSnapshot(a.matchID, a.clock.Now().UnixMilli())
	}
	if !eventlog.ValidateSequence(snap.Events) {
		a.logger.Warn("snapshot chronology invalid, starting fresh", "match", a.matchID)
		return newSnapshot(a.matchID, a.clock.Now().UnixMilli())
	}

	a.created = snap.Created
	return &snap
}

// Clear removes the persisted slot entirely
func (a *Adapter) Clear(ctx context.Context) bool {
	if err := a.kv.Delete(ctx, a.key); err != nil {
		a.logger.Error("snapshot delete failed", "match", a.matchID, "err", err)
		return false
	}
	a.created = 0
	return true
}

// Raw returns the persisted bytes without any validation, for the opt-in
// recovery tooling.
func (a *Adapter) Raw(ctx context.Context) ([]byte, bool) {
	data, found, err := a.kv.Get(ctx, a.key)
	if err != nil || !found {
		return nil, false
	}
	return data, true
}
