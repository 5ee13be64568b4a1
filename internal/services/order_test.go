package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/messmate/pgmess-backend/internal/config"
	"github.com/messmate/pgmess-backend/internal/cutoff"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/repos/testutil"
	"github.com/messmate/pgmess-backend/internal/services"
	"github.com/messmate/pgmess-backend/internal/types"
)

// Tuesday morning. Today's breakfast and lunch windows are closed,
// today's dinner and everything tomorrow are open.
var (
	resolveNow = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	today      = types.DateOnly(resolveNow)
	tomorrow   = today.AddDate(0, 0, 1)
)

type scriptedExtractor struct {
	intent *types.Intent
	err    error
	calls  int
}

func (f *scriptedExtractor) Extract(_ context.Context, _ services.ExtractRequest) (*types.Intent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fixture struct {
	svc    services.OrderService
	orders repos.OrderRepo
	users  repos.UserRepo
	tx     *gorm.DB
}

func newFixture(t *testing.T, extractor services.IntentExtractor) *fixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	cfg := config.Default()

	users := repos.NewUserRepo(tx, log)
	orders := repos.NewOrderRepo(tx, log, cfg.Prices())
	history := services.NewMemoryHistoryStore(log, cfg.HistoryMaxLines, cfg.HistoryTTL)
	t.Cleanup(func() { _ = history.Close() })

	svc := services.NewOrderService(log, users, orders, extractor, cutoff.NewPolicy(cfg), history)
	return &fixture{svc: svc, orders: orders, users: users, tx: tx}
}

func (f *fixture) seedOrder(t *testing.T, waID string, date time.Time, b, l, d bool, total int) *types.User {
	t.Helper()
	user := testutil.SeedUser(t, context.Background(), f.tx, waID)
	testutil.SeedOrder(t, context.Background(), f.tx, user.ID, date, b, l, d, total)
	return user
}

func intentFor(op types.IntentOperation, date time.Time, set func(*types.MealChanges)) *types.Intent {
	intent := &types.Intent{Operation: op, Date: date}
	if set != nil {
		set(&intent.Meals)
	}
	return intent
}

func TestResolveCreateBeforeCutoffs(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentCreate, tomorrow, func(mc *types.MealChanges) {
		mc.Set(types.MealBreakfast, true)
		mc.Set(types.MealLunch, true)
	})}
	f := newFixture(t, ex)

	res, err := f.svc.Resolve(context.Background(), "919800000201@s.whatsapp.net", "Anju", "breakfast and lunch for tomorrow", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 1 {
		t.Fatalf("Counter=%d, want 1", res.Counter)
	}
	if res.Order == nil || !res.Order.Breakfast || !res.Order.Lunch || res.Order.Dinner {
		t.Fatalf("order = %+v, want breakfast+lunch", res.Order)
	}
	if res.Order.TotalAmount != 110 {
		t.Fatalf("TotalAmount=%d, want 110", res.Order.TotalAmount)
	}
	for _, needle := range []string{"breakfast", "lunch", "₹110"} {
		if !strings.Contains(res.Reply, needle) {
			t.Fatalf("reply missing %q: %s", needle, res.Reply)
		}
	}
}

func TestResolveReplaceDropsUnmentionedMeals(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentReplace, tomorrow, func(mc *types.MealChanges) {
		mc.Set(types.MealLunch, true)
	})}
	f := newFixture(t, ex)
	f.seedOrder(t, "919800000202@s.whatsapp.net", tomorrow, true, false, true, 80)

	res, err := f.svc.Resolve(context.Background(), "919800000202@s.whatsapp.net", "Ravi", "make it just lunch", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Order.Breakfast || !res.Order.Lunch || res.Order.Dinner {
		t.Fatalf("order = %v/%v/%v, want false/true/false", res.Order.Breakfast, res.Order.Lunch, res.Order.Dinner)
	}
	if res.Order.TotalAmount != 70 {
		t.Fatalf("TotalAmount=%d, want 70", res.Order.TotalAmount)
	}
}

func TestResolveUpdatePreservesUnmentionedMeals(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentUpdate, tomorrow, func(mc *types.MealChanges) {
		mc.Set(types.MealLunch, true)
	})}
	f := newFixture(t, ex)
	f.seedOrder(t, "919800000203@s.whatsapp.net", tomorrow, true, false, true, 80)

	res, err := f.svc.Resolve(context.Background(), "919800000203@s.whatsapp.net", "Ravi", "add lunch too", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Order.Breakfast || !res.Order.Lunch || !res.Order.Dinner {
		t.Fatalf("order = %v/%v/%v, want all true", res.Order.Breakfast, res.Order.Lunch, res.Order.Dinner)
	}
}

func TestResolveCancelBypassesCutoff(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentCancel, today, nil)}
	f := newFixture(t, ex)
	// Today's lunch window closed an hour ago; cancel must still land.
	user := f.seedOrder(t, "919800000204@s.whatsapp.net", today, false, true, false, 70)

	res, err := f.svc.Resolve(context.Background(), "919800000204@s.whatsapp.net", "Anju", "cancel today", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Canceled || res.Counter != 1 {
		t.Fatalf("result = %+v, want canceled with counter 1", res)
	}

	stored, err := f.orders.Get(context.Background(), nil, user.ID, today)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.Canceled || stored.Lunch || stored.TotalAmount != 0 {
		t.Fatalf("stored order not zeroed: %+v", stored)
	}
}

func TestResolvePartialRejectionAppliesOpenMeals(t *testing.T) {
	// Today: breakfast closed, dinner open.
	ex := &scriptedExtractor{intent: intentFor(types.IntentUpdate, today, func(mc *types.MealChanges) {
		mc.Set(types.MealBreakfast, true)
		mc.Set(types.MealDinner, true)
	})}
	f := newFixture(t, ex)

	res, err := f.svc.Resolve(context.Background(), "919800000205@s.whatsapp.net", "Anju", "breakfast and dinner today", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 1 {
		t.Fatalf("Counter=%d, want 1", res.Counter)
	}
	if res.Order.Breakfast || !res.Order.Dinner {
		t.Fatalf("order = %+v, want dinner only", res.Order)
	}
	if !strings.Contains(res.Reply, "Couldn't add breakfast") {
		t.Fatalf("reply missing rejection: %s", res.Reply)
	}
	if !strings.Contains(res.Reply, "dinner") {
		t.Fatalf("reply missing accepted meal: %s", res.Reply)
	}
}

func TestResolveAllRejectedLeavesStateUntouched(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentCreate, today, func(mc *types.MealChanges) {
		mc.Set(types.MealBreakfast, true)
	})}
	f := newFixture(t, ex)

	res, err := f.svc.Resolve(context.Background(), "919800000206@s.whatsapp.net", "Ravi", "breakfast innu", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 0 {
		t.Fatalf("Counter=%d, want 0", res.Counter)
	}
	if !strings.Contains(res.Reply, "cutoff") {
		t.Fatalf("reply missing cutoff reason: %s", res.Reply)
	}

	user, err := f.users.GetByWhatsAppID(context.Background(), nil, "919800000206@s.whatsapp.net")
	if err != nil || user == nil {
		t.Fatalf("user not registered: %v", err)
	}
	stored, err := f.orders.Get(context.Background(), nil, user.ID, today)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != nil {
		t.Fatalf("rejected request persisted an order: %+v", stored)
	}
}

func TestResolveRemovalAdmittedAfterCutoff(t *testing.T) {
	// Dropping a meal is a partial cancel; the closed lunch window
	// must not block it.
	ex := &scriptedExtractor{intent: intentFor(types.IntentUpdate, today, func(mc *types.MealChanges) {
		mc.Set(types.MealLunch, false)
	})}
	f := newFixture(t, ex)
	f.seedOrder(t, "919800000207@s.whatsapp.net", today, false, true, true, 110)

	res, err := f.svc.Resolve(context.Background(), "919800000207@s.whatsapp.net", "Anju", "innu lunch venda", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 1 {
		t.Fatalf("Counter=%d, want 1", res.Counter)
	}
	if res.Order.Lunch || !res.Order.Dinner {
		t.Fatalf("order = %+v, want dinner only", res.Order)
	}
	if res.Order.TotalAmount != 40 {
		t.Fatalf("TotalAmount=%d, want 40", res.Order.TotalAmount)
	}
}

func TestResolveUnknownIntentChangesNothing(t *testing.T) {
	ex := &scriptedExtractor{intent: &types.Intent{
		Operation:          types.IntentUnknown,
		NeedsClarification: true,
		Clarification:      "Which meals would you like?",
	}}
	f := newFixture(t, ex)

	res, err := f.svc.Resolve(context.Background(), "919800000208@s.whatsapp.net", "Anju", "hello", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 0 || res.Order != nil {
		t.Fatalf("result = %+v, want counter 0 and no order", res)
	}
	if res.Reply != "Which meals would you like?" {
		t.Fatalf("Reply=%q", res.Reply)
	}
}

func TestResolveExtractionFailurePropagates(t *testing.T) {
	ex := &scriptedExtractor{err: services.ErrExtractionUnavailable}
	f := newFixture(t, ex)

	_, err := f.svc.Resolve(context.Background(), "919800000209@s.whatsapp.net", "Anju", "lunch", time.Time{}, resolveNow)
	if !errors.Is(err, services.ErrExtractionUnavailable) {
		t.Fatalf("err=%v, want ErrExtractionUnavailable", err)
	}
}

// conflictOnce fails the first Upsert with ErrConflict, then delegates.
type conflictOnce struct {
	repos.OrderRepo
	fired bool
}

func (c *conflictOnce) Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date time.Time, changes types.MealChanges, expectedRevision *int64) (*types.Order, error) {
	if !c.fired {
		c.fired = true
		return nil, repos.ErrConflict
	}
	return c.OrderRepo.Upsert(ctx, tx, userID, date, changes, expectedRevision)
}

func TestResolveRetriesOnceOnConflict(t *testing.T) {
	ex := &scriptedExtractor{intent: intentFor(types.IntentCreate, tomorrow, func(mc *types.MealChanges) {
		mc.Set(types.MealDinner, true)
	})}

	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	cfg := config.Default()
	users := repos.NewUserRepo(tx, log)
	wrapped := &conflictOnce{OrderRepo: repos.NewOrderRepo(tx, log, cfg.Prices())}
	history := services.NewMemoryHistoryStore(log, cfg.HistoryMaxLines, cfg.HistoryTTL)
	t.Cleanup(func() { _ = history.Close() })

	svc := services.NewOrderService(log, users, wrapped, ex, cutoff.NewPolicy(cfg), history)

	res, err := svc.Resolve(context.Background(), "919800000210@s.whatsapp.net", "Anju", "dinner nale", time.Time{}, resolveNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Counter != 1 || !res.Order.Dinner {
		t.Fatalf("retry did not land the write: %+v", res)
	}
	if !wrapped.fired {
		t.Fatalf("conflict wrapper never fired")
	}
}

func TestResolveDirectOperationsRequireKnownUser(t *testing.T) {
	f := newFixture(t, &scriptedExtractor{})

	var changes types.MealChanges
	changes.Set(types.MealLunch, true)

	if _, err := f.svc.DirectUpsert(context.Background(), "ghost@s.whatsapp.net", tomorrow, changes); !errors.Is(err, services.ErrUserNotFound) {
		t.Fatalf("DirectUpsert err=%v, want ErrUserNotFound", err)
	}
	if _, err := f.svc.CancelByDate(context.Background(), "ghost@s.whatsapp.net", tomorrow); !errors.Is(err, services.ErrUserNotFound) {
		t.Fatalf("CancelByDate err=%v, want ErrUserNotFound", err)
	}
	if _, err := f.svc.ListOrders(context.Background(), "ghost@s.whatsapp.net"); !errors.Is(err, services.ErrUserNotFound) {
		t.Fatalf("ListOrders err=%v, want ErrUserNotFound", err)
	}
}
