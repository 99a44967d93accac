package storage

import (
	"matchlog/eventlog"
)

// SnapshotVersion is the current persisted envelope version. Version "1.x"
// envelopes (the superseded primary+backup scheme) are still readable, see
// legacy.go.
const SnapshotVersion = "2.0"

// SnapshotMetadata summarizes the event list for quick inspection without
// deserializing every event
type SnapshotMetadata struct {
	EventCount   int    `json:"eventCount"`
	LastSequence uint64 `json:"lastSequence"`
}

// Snapshot is the persisted envelope: the full event list (undone events
// included), auxiliary derived maps, and integrity metadata. It is rewritten
// whole on every store mutation, never diffed.
type Snapshot struct {
	MatchID     string            `json:"matchId"`
	Version     string            `json:"version"`
	Created     int64             `json:"created"`
	LastUpdated int64             `json:"lastUpdated"`
	Checksum    string            `json:"checksum"`
	Events      []*eventlog.Event `json:"events"`
	GoalScorers map[string]int    `json:"goalScorers"`
	Corrections map[string]string `json:"corrections"`
	Metadata    SnapshotMetadata  `json:"metadata"`
}

// newSnapshot returns an empty envelope for a fresh match
func newSnapshot(matchID string, nowMS int64) *Snapshot {
	return &Snapshot{
		MatchID:     matchID,
		Version:     SnapshotVersion,
		Created:     nowMS,
		LastUpdated: nowMS,
		Events:      []*eventlog.Event{},
		GoalScorers: map[string]int{},
		Corrections: map[string]string{},
	}
}

// lastSequence scans for the highest assigned sequence number
func lastSequence(events []*eventlog.Event) uint64 {
	var last uint64
	for _, e := range events {
		if e.Sequence > last {
			last = e.Sequence
		}
	}
	return last
}
