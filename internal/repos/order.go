package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/types"
)

type OrderRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time) (*types.Order, error)

	// Upsert applies only the meals present in changes, leaving the
	// rest untouched. When expectedRevision is non-nil it must match
	// the row's current revision or the write fails with ErrConflict.
	// The revision increments on every successful write.
	Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time, changes types.MealChanges, expectedRevision *int64) (*types.Order, error)

	// Cancel zeroes all meals and marks the order canceled. Canceling
	// an absent or already-canceled order succeeds and returns the
	// unchanged state.
	Cancel(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time) (*types.Order, error)

	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Order, error)
	CountByDate(ctx context.Context, tx *gorm.DB, date time.Time) (*types.DailySummary, error)
}

type orderRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	prices map[types.Meal]int
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger, prices map[types.Meal]int) OrderRepo {
	repoLog := baseLog.With("repo", "OrderRepo")
	return &orderRepo{db: db, log: repoLog, prices: prices}
}

func (or *orderRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var order types.Order
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND order_date = ?", userID, types.DateOnly(date)).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (or *orderRepo) Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time, changes types.MealChanges, expectedRevision *int64) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	orderDate := types.DateOnly(date)

	existing, err := or.Get(ctx, transaction, userID, orderDate)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if expectedRevision != nil && *expectedRevision != 0 {
			// The caller read a row that has since disappeared; rows
			// are never deleted, so treat this as a racing writer.
			return nil, ErrConflict
		}
		order := &types.Order{
			ID:        uuid.New(),
			UserID:    userID,
			OrderDate: orderDate,
			Revision:  1,
		}
		applyChanges(order, changes)
		order.TotalAmount = or.total(order)
		err := transaction.WithContext(ctx).Create(order).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race on (user_id, order_date).
			return nil, ErrConflict
		}
		if err != nil {
			return nil, err
		}
		return order, nil
	}

	if expectedRevision != nil && *expectedRevision != existing.Revision {
		return nil, ErrConflict
	}

	final := *existing
	applyChanges(&final, changes)
	final.Canceled = false
	final.TotalAmount = or.total(&final)
	final.Revision = existing.Revision + 1

	// Revision re-validated at write time; no row lock is held between
	// the read above and this update.
	res := transaction.WithContext(ctx).
		Model(&types.Order{}).
		Where("id = ? AND revision = ?", existing.ID, existing.Revision).
		Updates(map[string]interface{}{
			"breakfast":    final.Breakfast,
			"lunch":        final.Lunch,
			"dinner":       final.Dinner,
			"total_amount": final.TotalAmount,
			"canceled":     final.Canceled,
			"revision":     final.Revision,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	return &final, nil
}

func (or *orderRepo) Cancel(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	orderDate := types.DateOnly(date)

	existing, err := or.Get(ctx, transaction, userID, orderDate)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Nothing ever existed for this date; succeed without
		// persisting an empty row.
		return &types.Order{
			UserID:    userID,
			OrderDate: orderDate,
			Canceled:  true,
		}, nil
	}
	if existing.Canceled && !existing.Breakfast && !existing.Lunch && !existing.Dinner {
		return existing, nil
	}

	final := *existing
	final.Breakfast = false
	final.Lunch = false
	final.Dinner = false
	final.TotalAmount = 0
	final.Canceled = true
	final.Revision = existing.Revision + 1

	res := transaction.WithContext(ctx).
		Model(&types.Order{}).
		Where("id = ? AND revision = ?", existing.ID, existing.Revision).
		Updates(map[string]interface{}{
			"breakfast":    false,
			"lunch":        false,
			"dinner":       false,
			"total_amount": 0,
			"canceled":     true,
			"revision":     final.Revision,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	return &final, nil
}

func (or *orderRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var results []*types.Order
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("order_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (or *orderRepo) CountByDate(ctx context.Context, tx *gorm.DB, date time.Time) (*types.DailySummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	orderDate := types.DateOnly(date)

	var orders []*types.Order
	if err := transaction.WithContext(ctx).
		Where("order_date = ? AND canceled = ?", orderDate, false).
		Find(&orders).Error; err != nil {
		return nil, err
	}

	summary := &types.DailySummary{Date: orderDate.Format("2006-01-02")}
	for _, o := range orders {
		if o.Breakfast {
			summary.BreakfastCount++
		}
		if o.Lunch {
			summary.LunchCount++
		}
		if o.Dinner {
			summary.DinnerCount++
		}
	}
	summary.TotalAmount = summary.BreakfastCount*or.prices[types.MealBreakfast] +
		summary.LunchCount*or.prices[types.MealLunch] +
		summary.DinnerCount*or.prices[types.MealDinner]
	return summary, nil
}

func applyChanges(order *types.Order, changes types.MealChanges) {
	for _, meal := range types.AllMeals() {
		if wanted := changes.Get(meal); wanted != nil {
			order.SetMeal(meal, *wanted)
		}
	}
}

func (or *orderRepo) total(order *types.Order) int {
	total := 0
	for _, meal := range types.AllMeals() {
		if order.Meal(meal) {
			total += or.prices[meal]
		}
	}
	return total
}
