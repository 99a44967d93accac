// Package corrections rewrites goal score history. When an earlier goal is
// removed or marked undone, every later goal event still carries the running
// totals frozen at its own append time; this package computes the patches
// that bring those totals back in line and applies them through the store's
// patch operation, without moving any event in the timeline.
package corrections

import (
	"context"

	"matchlog/eventlog"
)

// Patch is one pending data merge for a single event
type Patch struct {
	EventID string                 `json:"eventId"`
	Data    map[string]interface{} `json:"data"`
}

// Plan is the ordered set of patches that realigns the score history
type Plan struct {
	Patches []Patch `json:"patches"`
}

// Empty reports whether the plan has nothing to apply
func (p Plan) Empty() bool { return len(p.Patches) == 0 }

// Patcher is the slice of the event store a plan needs; *storage.Store
// satisfies it
type Patcher interface {
	PatchData(ctx context.Context, id string, partial map[string]interface{}) bool
}

// PlanGoalRewrite walks the active (non-undone) goal events in stored order,
// recomputes the running home/away totals, and emits a patch for every event
// whose frozen totals no longer match. Call it after the triggering removal
// or undo has been committed.
func PlanGoalRewrite(events []*eventlog.Event) Plan {
	var plan Plan
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

		goal, err := eventlog.DecodeGoal(e.Data)
		if err != nil {
			continue
		}
		if goal.HomeScore == home && goal.AwayScore == away {
			continue
		}
		plan.Patches = append(plan.Patches, Patch{
			EventID: e.ID,
			Data: map[string]interface{}{
				"homeScore": home,
				"awayScore": away,
			},
		})
	}
	return plan
}

// Apply runs every patch through the store in plan order. It returns the
// number applied and false if any patch was rejected; a partial application
// leaves earlier patches in place, and re-planning against the current list
// yields the remainder.
func Apply(ctx context.Context, store Patcher, plan Plan) (int, bool) {
	applied := 0
	for _, p := range plan.Patches {
		if !store.PatchData(ctx, p.EventID, p.Data) {
			return applied, false
		}
		applied++
	}
	return applied, true
}
