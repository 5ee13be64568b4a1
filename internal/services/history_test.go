package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/messmate/pgmess-backend/internal/logger"
)

func TestMemoryHistoryKeepsOnlyRecentLines(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := NewMemoryHistoryStore(log, 3, time.Hour)
	defer store.Close()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := store.Append(ctx, "wa1", fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	lines, err := store.Recent(ctx, "wa1")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("len=%d, want 3", len(lines))
	}
	if lines[0] != "line 3" || lines[2] != "line 5" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestMemoryHistoryIsolatesSenders(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := NewMemoryHistoryStore(log, 10, time.Hour)
	defer store.Close()

	ctx := context.Background()
	_ = store.Append(ctx, "wa1", "hello from one")
	_ = store.Append(ctx, "wa2", "hello from two")

	lines, err := store.Recent(ctx, "wa2")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(lines) != 1 || lines[0] != "hello from two" {
		t.Fatalf("lines=%v", lines)
	}

	if err := store.Clear(ctx, "wa1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	lines, err = store.Recent(ctx, "wa1")
	if err != nil {
		t.Fatalf("Recent after clear: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("lines=%v, want empty", lines)
	}
}
