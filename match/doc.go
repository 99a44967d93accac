// Package match is the facade consumed by the coaching UI: one Logger per
// match session, wrapping the event store, the persistence adapter, the time
// calculators and the score-correction engine behind the operation set the
// rest of the application uses.
package match
