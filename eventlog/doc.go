// Package eventlog defines the match event model: the closed event type
// enumeration, the immutable Event record, typed payload helpers, and the
// structural and chronological validation rules shared by the store and the
// recovery tooling.
//
// Key Components:
//   - EventType: closed enumeration of match, period, roster, scoring and
//     timer occurrences
//   - Event: sequenced, timestamped, soft-deletable fact record
//   - ValidateEvent / ValidateSequence: structural and ordering checks
//
// Invariants:
//   - Sequence numbers are unique and strictly increasing in append order
//   - Stored order by sequence implies order by timestamp (non-decreasing)
//   - Undone events are retained; they are excluded from default reads and
//     from derived statistics unless explicitly requested
//
// The Data payload stays an open map so corrective patches can be
// shallow-merged without the store knowing each payload shape; the typed
// payload structs in payloads.go give callers checked construction and
// decoding for the known kinds.
package eventlog
