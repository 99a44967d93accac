// Package stats derives downstream facts purely from the event stream:
// goal-scorer tallies, the running score timeline, and per-player time in
// each role. Nothing here reads persistence or mutates the store; undone
// events are excluded throughout.
package stats

import (
	"matchlog/eventlog"
)

// RoleField is the default role a substituted-on player occupies when the
// substitution names no position
const RoleField = "field"

// RoleGoalie is the role tracked for goalkeeper switches and assignments
const RoleGoalie = "goalie"

// GoalScorers tallies active GOAL_SCORED events per scorer id
func GoalScorers(events []*eventlog.Event) map[string]int {
	tally := map[string]int{}
	for _, e := range events {
		if e.Undone || e.Type != eventlog.GoalScored {
			continue
		}
		goal, err := eventlog.DecodeGoal(e.Data)
		if err != nil || goal.ScorerID == "" {
			continue
		}
		tally[goal.ScorerID]++
	}
	return tally
}

// ScorePoint is one step of the running score
type ScorePoint struct {
	EventID   string `json:"eventId"`
	MatchTime string `json:"matchTime"`
	Home      int    `json:"home"`
	Away      int    `json:"away"`
}

// ScoreTimeline recomputes the running score from active goal events in
// stored order. The result reflects the event stream itself, not the frozen
// per-event score fields, so it stays correct while a rewrite is in flight.
func ScoreTimeline(events []*eventlog.Event) []ScorePoint {
	var points []ScorePoint
	home, away := 0, 0
	for _, e := range events {
		if e.Undone || !e.IsGoal() {
			continue
		}
		switch e.Type {
		case eventlog.GoalScored:
			home++
		case eventlog.GoalConceded:
			away++
		}
		points = append(points, ScorePoint{
			EventID:   e.ID,
			MatchTime: e.MatchTime,
			Home:      home,
			Away:      away,
		})
	}
	return points
}

// roleInterval is an open per-player assignment being accumulated
type roleInterval struct {
	role    string
	sinceMS int64
}

// TimeInRole accumulates wall-clock milliseconds each player spent in each
// role, derived from substitution, goalie and position events. Intervals
// still open when the match ends (or at now, for an ongoing match) are
// closed at that point.
func TimeInRole(events []*eventlog.Event, nowMS int64) map[string]map[string]int64 {
	result := map[string]map[string]int64{}
	open := map[string]roleInterval{}

	credit := func(player string, iv roleInterval, untilMS int64) {
		if untilMS <= iv.sinceMS {
			return
		}
		if _, ok := result[player]; !ok {
			result[player] = map[string]int64{}
		}
		result[player][iv.role] += untilMS - iv.sinceMS
	}

	endMS := nowMS
	for _, e := range events {
		if e.Undone {
			continue
		}

		switch e.Type {
		case eventlog.Substitution:
			sub, err := eventlog.DecodeSubstitution(e.Data)
			if err != nil {
				continue
			}
			role := sub.Position
			if role == "" {
				role = RoleField
			}
			for _, off := range sub.PlayersOff {
				if iv, ok := open[off]; ok {
					credit(off, iv, e.Timestamp)
					delete(open, off)
				}
			}
			for _, on := range sub.PlayersOn {
				open[on] = roleInterval{role: role, sinceMS: e.Timestamp}
			}

		case eventlog.GoalieSwitch, eventlog.GoalieAssignment:
			gs, err := eventlog.DecodeGoalieSwitch(e.Data)
			if err != nil {
				continue
			}
			if gs.PlayerOut != "" {
				if iv, ok := open[gs.PlayerOut]; ok {
					credit(gs.PlayerOut, iv, e.Timestamp)
				}
				if e.Type == eventlog.GoalieSwitch {
					open[gs.PlayerOut] = roleInterval{role: RoleField, sinceMS: e.Timestamp}
				} else {
					delete(open, gs.PlayerOut)
				}
			}
			if gs.PlayerIn != "" {
				if iv, ok := open[gs.PlayerIn]; ok {
					credit(gs.PlayerIn, iv, e.Timestamp)
				}
				open[gs.PlayerIn] = roleInterval{role: RoleGoalie, sinceMS: e.Timestamp}
			}

		case eventlog.PositionChange:
			pc, err := eventlog.DecodePositionChange(e.Data)
			if err != nil || pc.PlayerID == "" {
				continue
			}
			if iv, ok := open[pc.PlayerID]; ok {
				credit(pc.PlayerID, iv, e.Timestamp)
			}
			open[pc.PlayerID] = roleInterval{role: pc.ToPosition, sinceMS: e.Timestamp}

		case eventlog.PlayerInactivated:
			player, _ := e.Data["playerId"].(string)
			if iv, ok := open[player]; ok {
				credit(player, iv, e.Timestamp)
				delete(open, player)
			}

		case eventlog.MatchEnd:
			endMS = e.Timestamp
		}
	}

	for player, iv := range open {
		credit(player, iv, endMS)
	}
	return result
}
