package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/messmate/pgmess-backend/internal/types"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HorizonDays != 7 {
		t.Fatalf("HorizonDays=%d, want 7", cfg.HorizonDays)
	}
	if got := cfg.Meals[types.MealBreakfast].Cutoff; got != -3*time.Hour {
		t.Fatalf("breakfast cutoff=%v, want -3h", got)
	}
	if got := cfg.Meals[types.MealLunch].Price; got != 70 {
		t.Fatalf("lunch price=%d, want 70", got)
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	raw := `
meals:
  dinner:
    cutoff: "18h"
    price: 55
horizon_days: 3
history:
  max_lines: 8
`
	path := writeTempConfig(t, raw)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Meals[types.MealDinner].Cutoff; got != 18*time.Hour {
		t.Fatalf("dinner cutoff=%v, want 18h", got)
	}
	if got := cfg.Meals[types.MealDinner].Price; got != 55 {
		t.Fatalf("dinner price=%d, want 55", got)
	}
	// Untouched meals keep their defaults.
	if got := cfg.Meals[types.MealBreakfast].Cutoff; got != -3*time.Hour {
		t.Fatalf("breakfast cutoff=%v, want default -3h", got)
	}
	if cfg.HorizonDays != 3 {
		t.Fatalf("HorizonDays=%d, want 3", cfg.HorizonDays)
	}
	if cfg.HistoryMaxLines != 8 {
		t.Fatalf("HistoryMaxLines=%d, want 8", cfg.HistoryMaxLines)
	}
	if cfg.HistoryTTL != 24*time.Hour {
		t.Fatalf("HistoryTTL=%v, want default 24h", cfg.HistoryTTL)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "unknown_meal", raw: "meals:\n  brunch:\n    price: 10\n"},
		{name: "bad_cutoff", raw: "meals:\n  lunch:\n    cutoff: \"nine\"\n"},
		{name: "negative_price", raw: "meals:\n  lunch:\n    price: -5\n"},
		{name: "zero_horizon", raw: "horizon_days: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.raw)
			if _, err := Load(path, nil); err == nil {
				t.Fatalf("Load accepted invalid config %q", tc.raw)
			}
		})
	}
}

func writeTempConfig(t *testing.T, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meals.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
