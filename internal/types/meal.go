package types

import "time"

type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// AllMeals returns the meals in serving order.
func AllMeals() []Meal {
	return []Meal{MealBreakfast, MealLunch, MealDinner}
}

func (m Meal) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

// MealChanges is a partial meal selection: a nil field means the meal
// was not mentioned and must be left untouched by an update.
type MealChanges struct {
	Breakfast *bool
	Lunch     *bool
	Dinner    *bool
}

func (mc *MealChanges) Get(meal Meal) *bool {
	switch meal {
	case MealBreakfast:
		return mc.Breakfast
	case MealLunch:
		return mc.Lunch
	case MealDinner:
		return mc.Dinner
	}
	return nil
}

func (mc *MealChanges) Set(meal Meal, wanted bool) {
	v := wanted
	switch meal {
	case MealBreakfast:
		mc.Breakfast = &v
	case MealLunch:
		mc.Lunch = &v
	case MealDinner:
		mc.Dinner = &v
	}
}

func (mc *MealChanges) Unset(meal Meal) {
	switch meal {
	case MealBreakfast:
		mc.Breakfast = nil
	case MealLunch:
		mc.Lunch = nil
	case MealDinner:
		mc.Dinner = nil
	}
}

// Mentioned returns the meals present in the change set, in serving order.
func (mc *MealChanges) Mentioned() []Meal {
	var out []Meal
	for _, meal := range AllMeals() {
		if mc.Get(meal) != nil {
			out = append(out, meal)
		}
	}
	return out
}

func (mc *MealChanges) Empty() bool {
	return mc.Breakfast == nil && mc.Lunch == nil && mc.Dinner == nil
}

// DateOnly strips the time-of-day component, keeping the calendar date
// in UTC. Order dates are stored and compared in this form.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
