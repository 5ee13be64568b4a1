// Package cutoff decides whether a meal order for a target date is
// still admissible at a given instant. The policy is a pure function
// of its inputs; it never reads a wall clock.
package cutoff

import (
	"time"

	"github.com/messmate/pgmess-backend/internal/config"
	"github.com/messmate/pgmess-backend/internal/types"
)

type Reason string

const (
	ReasonNone       Reason = ""
	ReasonPastCutoff Reason = "past-cutoff"
	ReasonDateInPast Reason = "date-in-past"
	ReasonDateTooFar Reason = "date-too-far"
)

// Decision is the admission verdict for one meal on one date.
type Decision struct {
	Meal     types.Meal
	Admitted bool
	Reason   Reason
}

type Policy struct {
	cutoffs     map[types.Meal]time.Duration
	horizonDays int
}

func NewPolicy(cfg *config.Config) *Policy {
	return &Policy{
		cutoffs:     cfg.Cutoffs(),
		horizonDays: cfg.HorizonDays,
	}
}

// Evaluate applies the admission rule: admitted iff now is at or before
// targetDate's midnight plus the meal's configured offset. The boundary
// instant itself admits. Dates before now's calendar date are rejected
// outright, as are dates beyond the ordering horizon.
//
// Midnight is taken in now's location; callers pass facility-local time.
func (p *Policy) Evaluate(meal types.Meal, targetDate time.Time, now time.Time) Decision {
	d := Decision{Meal: meal}

	today := midnight(now, now.Location())
	target := midnight(targetDate, now.Location())

	if target.Before(today) {
		d.Reason = ReasonDateInPast
		return d
	}
	if target.After(today.AddDate(0, 0, p.horizonDays)) {
		d.Reason = ReasonDateTooFar
		return d
	}

	deadline := target.Add(p.cutoffs[meal])
	if now.After(deadline) {
		d.Reason = ReasonPastCutoff
		return d
	}

	d.Admitted = true
	return d
}

func midnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
