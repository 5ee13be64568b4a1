package cutoff

import (
	"testing"
	"time"

	"github.com/messmate/pgmess-backend/internal/config"
	"github.com/messmate/pgmess-backend/internal/types"
)

func testPolicy() *Policy {
	return NewPolicy(config.Default())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestEvaluateBoundaryIsInclusive(t *testing.T) {
	p := testPolicy()
	target := date(2026, time.March, 10)

	// Exact configured deadlines: breakfast 21:00 the previous day,
	// lunch 09:00 same day, dinner 16:00 same day.
	cases := []struct {
		meal types.Meal
		now  time.Time
	}{
		{types.MealBreakfast, at(2026, time.March, 9, 21, 0, 0)},
		{types.MealLunch, at(2026, time.March, 10, 9, 0, 0)},
		{types.MealDinner, at(2026, time.March, 10, 16, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(string(tc.meal), func(t *testing.T) {
			d := p.Evaluate(tc.meal, target, tc.now)
			if !d.Admitted {
				t.Fatalf("Evaluate(%s) at boundary rejected with %q, want admitted", tc.meal, d.Reason)
			}
		})
	}
}

func TestEvaluateOneSecondPastBoundaryRejects(t *testing.T) {
	p := testPolicy()
	target := date(2026, time.March, 10)

	cases := []struct {
		meal types.Meal
		now  time.Time
	}{
		{types.MealBreakfast, at(2026, time.March, 9, 21, 0, 1)},
		{types.MealLunch, at(2026, time.March, 10, 9, 0, 1)},
		{types.MealDinner, at(2026, time.March, 10, 16, 0, 1)},
	}
	for _, tc := range cases {
		t.Run(string(tc.meal), func(t *testing.T) {
			d := p.Evaluate(tc.meal, target, tc.now)
			if d.Admitted {
				t.Fatalf("Evaluate(%s) one second past boundary admitted", tc.meal)
			}
			if d.Reason != ReasonPastCutoff {
				t.Fatalf("reason=%q, want %q", d.Reason, ReasonPastCutoff)
			}
		})
	}
}

func TestEvaluatePastDateAlwaysRejected(t *testing.T) {
	p := testPolicy()
	now := at(2026, time.March, 10, 8, 0, 0)
	for _, meal := range types.AllMeals() {
		d := p.Evaluate(meal, date(2026, time.March, 9), now)
		if d.Admitted || d.Reason != ReasonDateInPast {
			t.Fatalf("Evaluate(%s, yesterday) = %+v, want date-in-past", meal, d)
		}
	}
}

func TestEvaluateHorizon(t *testing.T) {
	p := testPolicy()
	now := at(2026, time.March, 10, 8, 0, 0)

	// Seven days out is the last admissible date.
	d := p.Evaluate(types.MealLunch, date(2026, time.March, 17), now)
	if !d.Admitted {
		t.Fatalf("Evaluate at horizon edge rejected with %q", d.Reason)
	}

	d = p.Evaluate(types.MealLunch, date(2026, time.March, 18), now)
	if d.Admitted || d.Reason != ReasonDateTooFar {
		t.Fatalf("Evaluate past horizon = %+v, want date-too-far", d)
	}
}

func TestEvaluateSameDayBeforeCutoff(t *testing.T) {
	p := testPolicy()
	now := at(2026, time.March, 10, 8, 30, 0)

	// Before lunch cutoff (09:00) and dinner cutoff (16:00), but hours
	// past the breakfast window that closed 21:00 yesterday.
	if d := p.Evaluate(types.MealLunch, date(2026, time.March, 10), now); !d.Admitted {
		t.Fatalf("same-day lunch before cutoff rejected with %q", d.Reason)
	}
	if d := p.Evaluate(types.MealDinner, date(2026, time.March, 10), now); !d.Admitted {
		t.Fatalf("same-day dinner before cutoff rejected with %q", d.Reason)
	}
	if d := p.Evaluate(types.MealBreakfast, date(2026, time.March, 10), now); d.Admitted || d.Reason != ReasonPastCutoff {
		t.Fatalf("same-day breakfast after window = %+v, want past-cutoff", d)
	}
}

func TestEvaluateIgnoresTimeOfDayOnTarget(t *testing.T) {
	p := testPolicy()
	now := at(2026, time.March, 10, 8, 0, 0)

	// A target carrying a stray time component behaves like its date.
	withTime := at(2026, time.March, 11, 23, 45, 0)
	d := p.Evaluate(types.MealBreakfast, withTime, now)
	if !d.Admitted {
		t.Fatalf("target with time component rejected with %q", d.Reason)
	}
}
