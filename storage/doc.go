// Package storage owns the authoritative in-memory match event list and its
// durable snapshot.
//
// Key Components:
//   - Store: the event store; append, hard delete, soft delete (mark
//     undone), in-place data patch, filtered read, full clear
//   - Adapter: serializes the full store state to a key-value slot with a
//     canonical-JSON SHA-256 checksum, and validates integrity and
//     chronology on every load
//   - KV: the key-value substrate interface, with in-memory, file, SQLite
//     and Redis backends
//   - listenerSet: synchronous subscriber fan-out with per-subscriber fault
//     isolation
//
// Mutation discipline:
//   - Copy-on-write: every mutating call constructs a new event list, writes
//     the whole snapshot, and only commits the new list if the write
//     succeeded; callers never observe a partially applied mutation
//   - Persist-then-notify: subscribers always see the committed list
//
// Failure policy:
//   - Persistence failures fail the triggering mutation (error or false);
//     nothing is retried automatically
//   - Corruption on load (checksum mismatch, chronology violation) silently
//     degrades to an empty store; availability over strict durability
//   - A superseded v1 primary+backup envelope found on load is upgraded
//     once to the current format (legacy.go)
package storage
