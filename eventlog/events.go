package eventlog

// EventType identifies a kind of match occurrence in the log
type EventType string

const (
	// Match lifecycle
	MatchStart     EventType = "MATCH_START"
	MatchEnd       EventType = "MATCH_END"
	MatchAbandoned EventType = "MATCH_ABANDONED"
	MatchSuspended EventType = "MATCH_SUSPENDED"

	// Period lifecycle
	PeriodStart   EventType = "PERIOD_START"
	PeriodEnd     EventType = "PERIOD_END"
	PeriodPaused  EventType = "PERIOD_PAUSED"
	PeriodResumed EventType = "PERIOD_RESUMED"
	Intermission  EventType = "INTERMISSION"

	// Substitution / roster
	Substitution       EventType = "SUBSTITUTION"
	SubstitutionUndone EventType = "SUBSTITUTION_UNDONE"
	GoalieSwitch       EventType = "GOALIE_SWITCH"
	GoalieAssignment   EventType = "GOALIE_ASSIGNMENT"
	PositionChange     EventType = "POSITION_CHANGE"
	PlayerActivated    EventType = "PLAYER_ACTIVATED"
	PlayerInactivated  EventType = "PLAYER_INACTIVATED"

	// Scoring
	GoalScored    EventType = "GOAL_SCORED"
	GoalConceded  EventType = "GOAL_CONCEDED"
	GoalCorrected EventType = "GOAL_CORRECTED"
	GoalUndone    EventType = "GOAL_UNDONE"

	// Timer
	TimerPaused      EventType = "TIMER_PAUSED"
	TimerResumed     EventType = "TIMER_RESUMED"
	TechnicalTimeout EventType = "TECHNICAL_TIMEOUT"
)

// validTypes is the closed enumeration; the store rejects anything outside it.
var validTypes = map[EventType]struct{}{
	MatchStart: {}, MatchEnd: {}, MatchAbandoned: {}, MatchSuspended: {},
	PeriodStart: {}, PeriodEnd: {}, PeriodPaused: {}, PeriodResumed: {}, Intermission: {},
	Substitution: {}, SubstitutionUndone: {}, GoalieSwitch: {}, GoalieAssignment: {},
	PositionChange: {}, PlayerActivated: {}, PlayerInactivated: {},
	GoalScored: {}, GoalConceded: {}, GoalCorrected: {}, GoalUndone: {},
	TimerPaused: {}, TimerResumed: {}, TechnicalTimeout: {},
}

// Valid reports whether t belongs to the closed event type enumeration
func (t EventType) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// Types returns all members of the closed enumeration (unspecified order)
func Types() []EventType {
	out := make([]EventType, 0, len(validTypes))
	for t := range validTypes {
		out = append(out, t)
	}
	return out
}

// Event represents an immutable match occurrence
//
// Events are never mutated in place once appended: corrections happen either
// by marking an event undone (the record is retained) or by shallow-merging a
// patch into a fresh copy of its Data map. Sequence is the single source of
// total order; MatchTime is frozen at append time for display and is never
// recomputed.
type Event struct {
	// Core metadata
	ID        string    `json:"id"`        // Opaque unique identifier
	Type      EventType `json:"type"`      // Member of the closed enumeration
	Timestamp int64     `json:"timestamp"` // Milliseconds since epoch
	MatchTime string    `json:"matchTime"` // "MM:SS" from the match-start anchor
	Sequence  uint64    `json:"sequence"`  // Strictly increasing, assigned at append

	// Optional placement
	PeriodNumber int `json:"periodNumber,omitempty"`

	// Payload - shape varies by event type
	Data map[string]interface{} `json:"data"`

	// Soft-delete bookkeeping
	Undone        bool   `json:"undone"`
	UndoTimestamp int64  `json:"undoTimestamp,omitempty"`
	UndoReason    string `json:"undoReason,omitempty"`

	// Back-reference linking corrective or paired events
	RelatedEventID string `json:"relatedEventId,omitempty"`
}

// Clone returns a copy of the event with its own Data map.
// Values inside Data are shared; callers treat them as immutable.
func (e *Event) Clone() *Event {
	cp := *e
	if e.Data != nil {
		cp.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}

// IsGoal reports whether the event changes the running score
func (e *Event) IsGoal() bool {
	return e.Type == GoalScored || e.Type == GoalConceded
}
