package srs

import (
	"time"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

// ReviewAnchorHour is the local hour card-level waiting timers resolve to
// when running in real time. Folder-level dates stay at local midnight.
const ReviewAnchorHour = 9

// Stage delay tables in days. A card's stage indexes its next delay; the
// terminal stage equals the table length.
var (
	shortDelays           = []int{1, 3, 7, 14, 30}
	forgettingCurveDelays = []int{3, 7, 14, 30, 60, 120}
)

// IntervalPolicy maps a stage to its review delay for one curve variant.
// Folders pick a variant at creation and all of their cards share it.
type IntervalPolicy struct {
	curve  entities.LearningCurveType
	delays []int
}

// PolicyFor returns the policy for the given curve. Unknown curves fall back
// to the forgetting curve, the default for new folders.
func PolicyFor(curve entities.LearningCurveType) IntervalPolicy {
	if curve == entities.CurveShort {
		return IntervalPolicy{curve: entities.CurveShort, delays: shortDelays}
	}
	return IntervalPolicy{curve: entities.CurveForgettingCurve, delays: forgettingCurveDelays}
}

func (p IntervalPolicy) Curve() entities.LearningCurveType { return p.curve }

// MaxStage is the terminal stage. Reaching it marks the card mastered.
func (p IntervalPolicy) MaxStage() int { return len(p.delays) }

// DelayDays returns the review delay for a stage, clamped to the table:
// stages below zero use the first entry, stages past the end use the last.
func (p IntervalPolicy) DelayDays(stage int) int {
	if stage < 0 {
		stage = 0
	}
	if stage >= len(p.delays) {
		stage = len(p.delays) - 1
	}
	return p.delays[stage]
}

// WaitingDuration is DelayDays expressed as an unaccelerated duration.
func (p IntervalPolicy) WaitingDuration(stage int) time.Duration {
	return time.Duration(p.DelayDays(stage)) * 24 * time.Hour
}

// SameDay reports whether a and b fall on the same calendar date, each read
// in its own location. Day fields scanned from SQL DATE columns come back as
// UTC midnight while the services compute local midnights, so instant
// equality is the wrong comparison for them.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AtAnchor returns the anchor hour on the same local day as t.
func AtAnchor(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), ReviewAnchorHour, 0, 0, 0, loc)
}

// NextDayAnchor returns the anchor hour of the local day after t.
func NextDayAnchor(t time.Time, loc *time.Location) time.Time {
	return AtAnchor(StartOfDay(t, loc).AddDate(0, 0, 1), loc)
}

// NextReviewDate computes the folder-level next review date for a stage:
// day granularity, anchored to local midnight of the base date.
func NextReviewDate(base time.Time, stage int, p IntervalPolicy, loc *time.Location) time.Time {
	return StartOfDay(base, loc).AddDate(0, 0, p.DelayDays(stage))
}

// ComputeWaitingUntil computes a card's waiting deadline after a correct
// answer at the given stage. In real time the deadline lands on the anchor
// hour of the target day; under acceleration the compressed duration is
// applied directly, since sub-day deadlines cannot hold a day anchor.
func ComputeWaitingUntil(clock Clock, p IntervalPolicy, stage int, loc *time.Location) time.Time {
	now := clock.Now()
	if clock.Factor() == 1 {
		return AtAnchor(StartOfDay(now, loc).AddDate(0, 0, p.DelayDays(stage)), loc)
	}
	return now.Add(clock.Accelerate(p.WaitingDuration(stage)))
}

// ComputeWrongWaitingUntil computes a failed card's retry deadline: the next
// local day at the anchor hour, or the accelerated 24h equivalent. This is
// the card's own availability timer and is deliberately distinct from the
// wrong-answer entry's mandatory review window.
func ComputeWrongWaitingUntil(clock Clock, loc *time.Location) time.Time {
	now := clock.Now()
	if clock.Factor() == 1 {
		return NextDayAnchor(now, loc)
	}
	return now.Add(clock.Accelerate(24 * time.Hour))
}
