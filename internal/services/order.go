package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/messmate/pgmess-backend/internal/cutoff"
	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/types"
)

// ErrUserNotFound is returned by the direct (non-chat) operations when
// the WhatsApp id has never messaged the service.
var ErrUserNotFound = errors.New("user not found")

// ResolveResult is what the worker renders back into the chat.
// Counter is 1 when order state was mutated, 0 otherwise.
type ResolveResult struct {
	Reply    string
	Counter  int
	Order    *types.Order
	Canceled bool
}

type OrderService interface {
	// Resolve turns one resident message into at most one order
	// mutation and a reply. referenceDate is the date an undated
	// message applies to; a zero value defaults it to tomorrow.
	Resolve(ctx context.Context, whatsappID, userName, message string, referenceDate, now time.Time) (*ResolveResult, error)

	// Direct (non-chat) operations used by the admin endpoints.
	DirectUpsert(ctx context.Context, whatsappID string, date time.Time, changes types.MealChanges) (*types.Order, error)
	CancelByDate(ctx context.Context, whatsappID string, date time.Time) (*types.Order, error)
	ListOrders(ctx context.Context, whatsappID string) ([]*types.Order, error)
	Summary(ctx context.Context, date time.Time) (*types.DailySummary, error)
}

type orderService struct {
	log       *logger.Logger
	users     repos.UserRepo
	orders    repos.OrderRepo
	extractor IntentExtractor
	policy    *cutoff.Policy
	history   ConversationStore
}

func NewOrderService(baseLog *logger.Logger, users repos.UserRepo, orders repos.OrderRepo, extractor IntentExtractor, policy *cutoff.Policy, history ConversationStore) OrderService {
	return &orderService{
		log:       baseLog.With("service", "OrderService"),
		users:     users,
		orders:    orders,
		extractor: extractor,
		policy:    policy,
		history:   history,
	}
}

type rejection struct {
	meal   types.Meal
	reason cutoff.Reason
}

func (s *orderService) Resolve(ctx context.Context, whatsappID, userName, message string, referenceDate, now time.Time) (*ResolveResult, error) {
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}
	if referenceDate.IsZero() {
		// Undated messages order for tomorrow.
		referenceDate = types.DateOnly(now).AddDate(0, 0, 1)
	}

	user, err := s.users.GetOrCreate(ctx, nil, whatsappID, userName)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}

	history, err := s.history.Recent(ctx, whatsappID)
	if err != nil {
		// Stale context degrades quality, not correctness.
		s.log.Warn("Failed to read conversation history", "error", err)
		history = nil
	}

	intent, err := s.extractor.Extract(ctx, ExtractRequest{
		Message:       message,
		UserID:        &user.ID,
		UserName:      user.Username,
		WhatsAppID:    whatsappID,
		ReferenceDate: referenceDate,
		Now:           now,
		History:       history,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.applyIntent(ctx, user, intent, now)
	if err != nil {
		return nil, err
	}

	s.appendHistory(ctx, whatsappID, message, result.Reply)
	return result, nil
}

func (s *orderService) applyIntent(ctx context.Context, user *types.User, intent *types.Intent, now time.Time) (*ResolveResult, error) {
	if intent.Operation == types.IntentUnknown {
		return &ResolveResult{Reply: intent.Clarification, Counter: 0}, nil
	}

	dateStr := intent.Date.Format("Mon, 02 Jan")

	if intent.Operation == types.IntentCancel {
		// Cancellation is always allowed, cut-off or not.
		order, err := s.cancelWithRetry(ctx, user, intent.Date)
		if err != nil {
			return nil, err
		}
		return &ResolveResult{
			Reply:    fmt.Sprintf("Done, your order for %s is canceled.", dateStr),
			Counter:  1,
			Order:    order,
			Canceled: true,
		}, nil
	}

	existing, err := s.orders.Get(ctx, nil, user.ID, intent.Date)
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}

	changes := intent.Meals
	if intent.Operation == types.IntentReplace {
		// Replace restates the whole order: unmentioned meals drop.
		for _, meal := range types.AllMeals() {
			if changes.Get(meal) == nil {
				changes.Set(meal, false)
			}
		}
	}

	// Only additions need an open window; removing a meal is a partial
	// cancellation and always goes through.
	var rejected []rejection
	for _, meal := range changes.Mentioned() {
		wanted := changes.Get(meal)
		if wanted == nil || !*wanted {
			continue
		}
		decision := s.policy.Evaluate(meal, intent.Date, now)
		if !decision.Admitted {
			rejected = append(rejected, rejection{meal: meal, reason: decision.Reason})
			changes.Unset(meal)
		}
	}

	if changes.Empty() {
		reply := composeReply(dateStr, nil, nil, rejected, existing)
		return &ResolveResult{Reply: reply, Counter: 0, Order: existing}, nil
	}

	order, err := s.upsertWithRetry(ctx, user, intent.Date, changes, existing)
	if err != nil {
		return nil, err
	}

	var added, removed []types.Meal
	for _, meal := range changes.Mentioned() {
		if *changes.Get(meal) {
			added = append(added, meal)
		} else {
			removed = append(removed, meal)
		}
	}

	reply := composeReply(dateStr, added, removed, rejected, order)
	return &ResolveResult{Reply: reply, Counter: 1, Order: order}, nil
}

// upsertWithRetry writes once against the revision read earlier and, on
// a conflict, re-reads and writes once more. The retry takes whatever
// state the racing writer left (latest write wins on the contested
// meals).
func (s *orderService) upsertWithRetry(ctx context.Context, user *types.User, date time.Time, changes types.MealChanges, existing *types.Order) (*types.Order, error) {
	var expected *int64
	if existing != nil {
		rev := existing.Revision
		expected = &rev
	}

	order, err := s.orders.Upsert(ctx, nil, user.ID, date, changes, expected)
	if !errors.Is(err, repos.ErrConflict) {
		return order, err
	}

	s.log.Warn("Order write conflicted, retrying once", "user_id", user.ID.String())
	fresh, err := s.orders.Get(ctx, nil, user.ID, date)
	if err != nil {
		return nil, fmt.Errorf("re-read after conflict: %w", err)
	}
	expected = nil
	if fresh != nil {
		rev := fresh.Revision
		expected = &rev
	}
	return s.orders.Upsert(ctx, nil, user.ID, date, changes, expected)
}

func (s *orderService) cancelWithRetry(ctx context.Context, user *types.User, date time.Time) (*types.Order, error) {
	order, err := s.orders.Cancel(ctx, nil, user.ID, date)
	if !errors.Is(err, repos.ErrConflict) {
		return order, err
	}
	s.log.Warn("Cancel conflicted, retrying once", "user_id", user.ID.String())
	return s.orders.Cancel(ctx, nil, user.ID, date)
}

var reasonText = map[cutoff.Reason]string{
	cutoff.ReasonPastCutoff: "the cutoff has passed",
	cutoff.ReasonDateInPast: "that date is already over",
	cutoff.ReasonDateTooFar: "that's too far ahead to order",
}

func composeReply(dateStr string, added, removed []types.Meal, rejected []rejection, order *types.Order) string {
	var parts []string

	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("Added %s for %s.", joinMeals(added), dateStr))
	}
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("Removed %s for %s.", joinMeals(removed), dateStr))
	}
	for _, r := range rejected {
		parts = append(parts, fmt.Sprintf("Couldn't add %s: %s.", r.meal, reasonText[r.reason]))
	}

	switch {
	case order == nil || order.Canceled:
		parts = append(parts, "You have no order for "+dateStr+".")
	default:
		var current []types.Meal
		for _, meal := range types.AllMeals() {
			if order.Meal(meal) {
				current = append(current, meal)
			}
		}
		if len(current) == 0 {
			parts = append(parts, fmt.Sprintf("Your order for %s is now empty.", dateStr))
		} else {
			parts = append(parts, fmt.Sprintf("Your order for %s: %s (total ₹%d).", dateStr, joinMeals(current), order.TotalAmount))
		}
	}

	return strings.Join(parts, " ")
}

func joinMeals(meals []types.Meal) string {
	names := make([]string, len(meals))
	for i, m := range meals {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func (s *orderService) appendHistory(ctx context.Context, whatsappID, message, reply string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, whatsappID, "User: "+message); err != nil {
		s.log.Warn("Failed to append user line to history", "error", err)
		return
	}
	if err := s.history.Append(ctx, whatsappID, "Bot: "+reply); err != nil {
		s.log.Warn("Failed to append bot line to history", "error", err)
	}
}

func (s *orderService) DirectUpsert(ctx context.Context, whatsappID string, date time.Time, changes types.MealChanges) (*types.Order, error) {
	user, err := s.users.GetByWhatsAppID(ctx, nil, whatsappID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.upsertWithRetry(ctx, user, date, changes, nil)
}

func (s *orderService) CancelByDate(ctx context.Context, whatsappID string, date time.Time) (*types.Order, error) {
	user, err := s.users.GetByWhatsAppID(ctx, nil, whatsappID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.cancelWithRetry(ctx, user, date)
}

func (s *orderService) ListOrders(ctx context.Context, whatsappID string) ([]*types.Order, error) {
	user, err := s.users.GetByWhatsAppID(ctx, nil, whatsappID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.orders.ListByUser(ctx, nil, user.ID)
}

func (s *orderService) Summary(ctx context.Context, date time.Time) (*types.DailySummary, error) {
	return s.orders.CountByDate(ctx, nil, date)
}
