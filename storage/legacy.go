package storage

import (
	"context"
	"encoding/json"

	"matchlog/eventlog"
)

// The superseded v1 persistence scheme wrote a primary and a backup key, with
// no checksum. It is read-only here: a valid v1 envelope found on load is
// upgraded into a current snapshot and re-persisted under the current key.
// Nothing ever writes the v1 format.

type legacyEnvelope struct {
	MatchID string            `json:"matchId"`
	Version string            `json:"version"`
	SavedAt int64             `json:"savedAt"`
	Events  []*eventlog.Event `json:"events"`
}

func (a *Adapter) legacyKeys() []string {
	return []string{
		"match_events_" + a.matchID,
		"match_events_backup_" + a.matchID,
	}
}

// loadLegacy tries the v1 primary then backup key. The first parseable,
// chronologically valid envelope wins and is upgraded in place.
func (a *Adapter) loadLegacy(ctx context.Context) *Snapshot {
	for _, key := range a.legacyKeys() {
		data, found, err := a.kv.Get(ctx, key)
		if err != nil || !found {
			continue
		}

		var env legacyEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			a.logger.Warn("legacy envelope unparseable, skipping", "match", a.matchID, "key", key, "err", err)
			continue
		}
		if !eventlog.ValidateSequence(env.Events) {
			a.logger.Warn("legacy envelope chronology invalid, skipping", "match", a.matchID, "key", key)
			continue
		}

		a.logger.Info("upgrading legacy match log", "match", a.matchID, "key", key, "events", len(env.Events))
		created := env.SavedAt
		if created == 0 {
			created = a.clock.Now().UnixMilli()
		}
		a.created = created

		events := env.Events
		if events == nil {
			events = []*eventlog.Event{}
		}
		if !a.Save(ctx, events, nil, nil) {
			// Could not persist the upgrade; still serve the events so the
			// session can continue. The next successful save rewrites them.
			a.logger.Warn("legacy upgrade save failed, serving unpersisted", "match", a.matchID)
		}

		snap := newSnapshot(a.matchID, created)
		snap.LastUpdated = a.clock.Now().UnixMilli()
		snap.Events = events
		snap.Metadata = SnapshotMetadata{
			EventCount:   len(events),
			LastSequence: lastSequence(events),
		}
		return snap
	}
	return nil
}
