// Package matchtime derives clock values from the event stream: the frozen
// "MM:SS" match-clock string stamped into each event, and the cumulative
// effective playing time (wall-clock time minus paused intervals). All
// functions are pure; "now" is passed in explicitly so callers own the clock.
package matchtime

import (
	"fmt"
	"time"

	"matchlog/eventlog"
)

// Clock abstracts wall time so stores and calculators are testable
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// SystemClock returns the default wall clock
func SystemClock() Clock { return wallClock{} }

// Format renders the elapsed time between matchStartMS and timestampMS as a
// "MM:SS" string. Missing inputs (zero or negative) yield "00:00" - a defined
// fallback, not an error. Negative elapsed time is clamped to zero to guard
// against clock skew and backdated entries.
func Format(timestampMS, matchStartMS int64) string {
	if timestampMS <= 0 || matchStartMS <= 0 {
		return "00:00"
	}
	elapsed := timestampMS - matchStartMS
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := elapsed / 60000
	seconds := (elapsed % 60000) / 1000
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// EffectivePlayingTime returns the milliseconds of actual play represented by
// the event stream: match end (or now, while the match is ongoing) minus
// match start, minus every closed TIMER_PAUSED -> TIMER_RESUMED interval.
// A still-open pause counts as paused-until-now, so time currently paused is
// never counted as play. A stream with no match start has no playing time.
//
// Pause pairing is best-effort on malformed streams: the first pause opens an
// interval and later pauses are absorbed into it until a resume closes it.
// Each pause therefore pairs with the next resume after it and before any
// pause that follows that resume.
func EffectivePlayingTime(events []*eventlog.Event, nowMS int64) int64 {
	startMS := int64(0)
	for _, e := range events {
		if e.Undone {
			continue
		}
		if e.Type == eventlog.MatchStart {
			startMS = e.Timestamp
			break
		}
	}
	if startMS == 0 {
		return 0
	}

	endMS := nowMS
	for _, e := range events {
		if e.Undone {
			continue
		}
		if e.Type == eventlog.MatchEnd && e.Timestamp >= startMS {
			endMS = e.Timestamp
			break
		}
	}
	if endMS < startMS {
		return 0
	}

	var paused int64
	openPause := int64(-1)
	for _, e := range events {
		if e.Undone || e.Timestamp < startMS || e.Timestamp > endMS {
			continue
		}
		switch e.Type {
		case eventlog.TimerPaused:
			if openPause < 0 {
				openPause = e.Timestamp
			}
		case eventlog.TimerResumed:
			if openPause >= 0 {
				paused += e.Timestamp - openPause
				openPause = -1
			}
		}
	}
	if openPause >= 0 {
		paused += endMS - openPause
	}

	playing := endMS - startMS - paused
	if playing < 0 {
		return 0
	}
	return playing
}
