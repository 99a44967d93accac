// Package recovery is the opt-in repair path for corrupted persisted match
// logs. Normal load refuses corrupted data outright and starts fresh;
// Salvage instead extracts whatever individually well-formed events survive
// in a blob, orders them, and rebuilds a consistent sequence - best effort,
// explicitly requested, never part of the normal startup path.
package recovery

import (
	"encoding/json"
	"sort"

	"matchlog/eventlog"
)

// Report describes what a salvage attempt found and dropped
type Report struct {
	// Candidates is the number of event-shaped objects found in the blob
	Candidates int `json:"candidates"`
	// Salvaged is the number of events in the rebuilt list
	Salvaged int `json:"salvaged"`
	// DroppedMalformed counts candidates failing the structural check
	DroppedMalformed int `json:"droppedMalformed"`
	// DroppedDuplicates counts candidates whose id was already taken
	// (first occurrence wins)
	DroppedDuplicates int `json:"droppedDuplicates"`
	// Resequenced is true when the salvaged events were given fresh
	// sequence numbers 1..N
	Resequenced bool `json:"resequenced"`
}

// Salvage attempts to reconstruct an event list from a possibly-corrupted
// persisted blob. Structurally valid events are kept even when the blob as a
// whole fails checksum, chronology or JSON parsing; they are sorted by
// timestamp (ties by original sequence), de-duplicated by id, and given
// fresh sequence numbers 1..N. MatchTime strings are frozen display values
// and are carried over untouched.
func Salvage(blob []byte) ([]*eventlog.Event, *Report) {
	report := &Report{}

	candidates := extractCandidates(blob)
	report.Candidates = len(candidates)

	kept := make([]*eventlog.Event, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, e := range candidates {
		if !wellFormed(e) {
			report.DroppedMalformed++
			continue
		}
		if _, dup := seen[e.ID]; dup {
			report.DroppedDuplicates++
			continue
		}
		seen[e.ID] = struct{}{}
		kept = append(kept, e.Clone())
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Timestamp != kept[j].Timestamp {
			return kept[i].Timestamp < kept[j].Timestamp
		}
		return kept[i].Sequence < kept[j].Sequence
	})

	for i, e := range kept {
		e.Sequence = uint64(i + 1)
	}

	report.Salvaged = len(kept)
	report.Resequenced = len(kept) > 0
	return kept, report
}

// wellFormed is the per-event salvage bar: identity, known type and a real
// timestamp. Sequence is not required - it is rebuilt afterwards.
func wellFormed(e *eventlog.Event) bool {
	return e != nil && e.ID != "" && e.Type.Valid() && e.Timestamp > 0
}

// extractCandidates pulls event-shaped objects out of the blob, trying the
// cheap interpretations first and falling back to a byte-level object scan
// when the JSON as a whole is broken.
func extractCandidates(blob []byte) []*eventlog.Event {
	// Whole blob as a snapshot-style envelope with an events array.
	var envelope struct {
		Events []*eventlog.Event `json:"events"`
	}
	if err := json.Unmarshal(blob, &envelope); err == nil && len(envelope.Events) > 0 {
		return envelope.Events
	}

	// Whole blob as a bare event array.
	var list []*eventlog.Event
	if err := json.Unmarshal(blob, &list); err == nil && len(list) > 0 {
		return list
	}

	return scanObjects(blob)
}

// scanObjects walks the raw bytes tracking string and brace state, tries to
// decode every balanced {...} region as an event, and recurses past objects
// that decode as something else. Truncated tails and garbage between objects
// are skipped rather than fatal.
func scanObjects(blob []byte) []*eventlog.Event {
	var found []*eventlog.Event

	i := 0
	for i < len(blob) {
		if blob[i] != '{' {
			i++
			continue
		}
		end, ok := matchBrace(blob, i)
		if !ok {
			// Unterminated object; nothing balanced remains.
			i++
			continue
		}

		var e eventlog.Event
		if err := json.Unmarshal(blob[i:end+1], &e); err == nil && wellFormed(&e) {
			found = append(found, &e)
			i = end + 1
			continue
		}

		// Not an event itself; look inside it.
		i++
	}
	return found
}

// matchBrace returns the index of the brace closing the object opened at
// start, honoring strings and escapes
func matchBrace(blob []byte, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(blob); i++ {
		c := blob[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}
