package eventlog

// ValidateEvent performs the structural check on a fully-constructed event:
// presence and type of id, type, timestamp and sequence. The Data payload is
// deliberately left unconstrained at this layer; its shape is type-specific.
func ValidateEvent(e *Event) []Problem {
	var problems []Problem

	if e == nil {
		return []Problem{{Field: "event", Message: "event is nil"}}
	}
	if e.ID == "" {
		problems = append(problems, Problem{Field: "id", Message: "must not be empty"})
	}
	if !e.Type.Valid() {
		problems = append(problems, Problem{Field: "type", Message: "unknown event type " + string(e.Type)})
	}
	if e.Timestamp <= 0 {
		problems = append(problems, Problem{Field: "timestamp", Message: "must be a positive epoch-millisecond value"})
	}
	if e.Sequence == 0 {
		problems = append(problems, Problem{Field: "sequence", Message: "must be assigned (non-zero)"})
	}
	return problems
}

// ValidateSequence reports whether events, scanned in stored order, are both
// timestamp-monotonic (non-decreasing) and sequence-monotonic (strictly
// increasing). A store violating this must not be trusted without recovery.
func ValidateSequence(events []*Event) bool {
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.Timestamp < prev.Timestamp {
			return false
		}
		if cur.Sequence <= prev.Sequence {
			return false
		}
	}
	return true
}
