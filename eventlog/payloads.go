package eventlog

import "encoding/json"

// Typed payload structs for the known event kinds. The store keeps Data as an
// open map so partial patches can be shallow-merged without knowing the full
// shape; these structs give callers compile-time field checking on the way in
// and out. Conversion goes through a JSON round trip so the map holds exactly
// what a persisted event would.

// GoalPayload carries the scorer and the running score after the goal
type GoalPayload struct {
	ScorerID  string `json:"scorerId,omitempty"`
	AssistID  string `json:"assistId,omitempty"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

// SubstitutionPayload lists the players going on and off
type SubstitutionPayload struct {
	PlayersOn  []string `json:"playersOn"`
	PlayersOff []string `json:"playersOff"`
	Position   string   `json:"position,omitempty"`
}

// GoalieSwitchPayload records a goalkeeper change
type GoalieSwitchPayload struct {
	PlayerIn  string `json:"playerIn"`
	PlayerOut string `json:"playerOut,omitempty"`
}

// PositionChangePayload moves a player between named positions
type PositionChangePayload struct {
	PlayerID     string `json:"playerId"`
	FromPosition string `json:"fromPosition,omitempty"`
	ToPosition   string `json:"toPosition"`
}

// PeriodPayload identifies the period a lifecycle event belongs to
type PeriodPayload struct {
	Period          int `json:"period"`
	DurationMinutes int `json:"durationMinutes,omitempty"`
}

// PlayerPayload names the player affected by a roster event
type PlayerPayload struct {
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason,omitempty"`
}

func (p GoalPayload) Data() map[string]interface{}           { return toData(p) }
func (p SubstitutionPayload) Data() map[string]interface{}   { return toData(p) }
func (p GoalieSwitchPayload) Data() map[string]interface{}   { return toData(p) }
func (p PositionChangePayload) Data() map[string]interface{} { return toData(p) }
func (p PeriodPayload) Data() map[string]interface{}         { return toData(p) }
func (p PlayerPayload) Data() map[string]interface{}         { return toData(p) }

// DecodeGoal extracts a GoalPayload from an event's open data map
func DecodeGoal(data map[string]interface{}) (GoalPayload, error) {
	var p GoalPayload
	err := fromData(data, &p)
	return p, err
}

// DecodeSubstitution extracts a SubstitutionPayload from an event's data map
func DecodeSubstitution(data map[string]interface{}) (SubstitutionPayload, error) {
	var p SubstitutionPayload
	err := fromData(data, &p)
	return p, err
}

// DecodeGoalieSwitch extracts a GoalieSwitchPayload from an event's data map
func DecodeGoalieSwitch(data map[string]interface{}) (GoalieSwitchPayload, error) {
	var p GoalieSwitchPayload
	err := fromData(data, &p)
	return p, err
}

// DecodePositionChange extracts a PositionChangePayload from an event's data map
func DecodePositionChange(data map[string]interface{}) (PositionChangePayload, error) {
	var p PositionChangePayload
	err := fromData(data, &p)
	return p, err
}

func toData(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

func fromData(data map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
