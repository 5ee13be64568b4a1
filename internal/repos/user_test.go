package repos_test

import (
	"context"
	"testing"

	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/repos/testutil"
)

func TestGetOrCreateRegistersNewResident(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	ur := repos.NewUserRepo(testutil.DB(t), testutil.Logger(t))

	user, err := ur.GetOrCreate(ctx, tx, "919800000100@s.whatsapp.net", "Anju")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if user.Username != "Anju" {
		t.Fatalf("Username=%q, want Anju", user.Username)
	}

	again, err := ur.GetOrCreate(ctx, tx, "919800000100@s.whatsapp.net", "Anju")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second GetOrCreate created a new row")
	}
}

func TestGetOrCreateRefreshesUsername(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	ur := repos.NewUserRepo(testutil.DB(t), testutil.Logger(t))

	user, err := ur.GetOrCreate(ctx, tx, "919800000101@s.whatsapp.net", "Ravi")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	updated, err := ur.GetOrCreate(ctx, tx, "919800000101@s.whatsapp.net", "Ravi K")
	if err != nil {
		t.Fatalf("GetOrCreate with new name: %v", err)
	}
	if updated.ID != user.ID {
		t.Fatalf("username refresh created a new row")
	}
	if updated.Username != "Ravi K" {
		t.Fatalf("Username=%q, want Ravi K", updated.Username)
	}
}

func TestGetOrCreateDefaultsMissingUsername(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	ur := repos.NewUserRepo(testutil.DB(t), testutil.Logger(t))

	user, err := ur.GetOrCreate(ctx, tx, "919800000102@s.whatsapp.net", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if user.Username != "Unknown" {
		t.Fatalf("Username=%q, want Unknown", user.Username)
	}
}

func TestGetByWhatsAppIDMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	ur := repos.NewUserRepo(testutil.DB(t), testutil.Logger(t))

	user, err := ur.GetByWhatsAppID(ctx, tx, "nobody@s.whatsapp.net")
	if err != nil {
		t.Fatalf("GetByWhatsAppID: %v", err)
	}
	if user != nil {
		t.Fatalf("got %+v, want nil", user)
	}
}
