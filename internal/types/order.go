package types

import (
	"time"

	"github.com/google/uuid"
)

// Order is one resident's meal selection for one calendar date. There
// is at most one row per (user, date); cancellation zeroes the meal
// flags instead of deleting the row so the history stays auditable.
// Revision increases on every committed mutation and backs the
// optimistic concurrency check in the order repo.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_orders_user_date,priority:1" json:"user_id"`
	OrderDate   time.Time `gorm:"column:order_date;not null;uniqueIndex:ux_orders_user_date,priority:2" json:"order_date"`
	Breakfast   bool      `gorm:"not null;default:false" json:"breakfast"`
	Lunch       bool      `gorm:"not null;default:false" json:"lunch"`
	Dinner      bool      `gorm:"not null;default:false" json:"dinner"`
	TotalAmount int       `gorm:"column:total_amount;not null;default:0" json:"total_amount"`
	Canceled    bool      `gorm:"not null;default:false" json:"canceled"`
	Revision    int64     `gorm:"not null;default:0" json:"revision"`
	Remarks     string    `gorm:"column:remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) Meal(meal Meal) bool {
	switch meal {
	case MealBreakfast:
		return o.Breakfast
	case MealLunch:
		return o.Lunch
	case MealDinner:
		return o.Dinner
	}
	return false
}

func (o *Order) SetMeal(meal Meal, wanted bool) {
	switch meal {
	case MealBreakfast:
		o.Breakfast = wanted
	case MealLunch:
		o.Lunch = wanted
	case MealDinner:
		o.Dinner = wanted
	}
}

// OrderPayload is the wire shape the WhatsApp worker consumes. Meals
// are 0/1 and the date is a bare YYYY-MM-DD string, matching what the
// worker has always received.
type OrderPayload struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	OrderDate   string `json:"order_date"`
	Breakfast   int    `json:"breakfast"`
	Lunch       int    `json:"lunch"`
	Dinner      int    `json:"dinner"`
	TotalAmount int    `json:"total_amount"`
	Canceled    bool   `json:"canceled"`
	Revision    int64  `json:"revision"`
}

func (o *Order) Payload() *OrderPayload {
	if o == nil {
		return nil
	}
	asInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	id := ""
	if o.ID != uuid.Nil {
		id = o.ID.String()
	}
	userID := ""
	if o.UserID != uuid.Nil {
		userID = o.UserID.String()
	}
	return &OrderPayload{
		ID:          id,
		UserID:      userID,
		OrderDate:   o.OrderDate.Format("2006-01-02"),
		Breakfast:   asInt(o.Breakfast),
		Lunch:       asInt(o.Lunch),
		Dinner:      asInt(o.Dinner),
		TotalAmount: o.TotalAmount,
		Canceled:    o.Canceled,
		Revision:    o.Revision,
	}
}

// DailySummary is the kitchen headcount for one date, counting only
// active (non-canceled) orders.
type DailySummary struct {
	Date           string `json:"date"`
	BreakfastCount int    `json:"breakfast_count"`
	LunchCount     int    `json:"lunch_count"`
	DinnerCount    int    `json:"dinner_count"`
	TotalAmount    int    `json:"total_amount"`
}
