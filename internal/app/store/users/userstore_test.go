package userstore_test

import (
	"errors"
	"testing"

	userstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/users"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"github.com/mrlynn/dailyreflections-sub008/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate_SetsDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		DisplayName: "Pat Doe",
		Email:       "Pat@Example.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.EmailCI != "pat@example.com" {
		t.Errorf("EmailCI: got %q, want folded email", created.EmailCI)
	}
	if created.Status != "active" {
		t.Errorf("Status: got %q, want active", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestGetByEmail_FoldsCase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{DisplayName: "Pat", Email: "pat@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "PAT@Example.COM")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got user %s, want %s", got.ID.Hex(), created.ID.Hex())
	}

	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("unknown email: got %v, want ErrNotFound", err)
	}
}

func TestGetByID_Missing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestOnboardingFlag(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{DisplayName: "New", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done, err := store.IsProfileComplete(ctx, u.ID)
	if err != nil {
		t.Fatalf("IsProfileComplete failed: %v", err)
	}
	if done {
		t.Error("fresh user should not be profile-complete")
	}

	if err := store.SetOnboardingComplete(ctx, u.ID, true); err != nil {
		t.Fatalf("SetOnboardingComplete failed: %v", err)
	}
	done, err = store.IsProfileComplete(ctx, u.ID)
	if err != nil {
		t.Fatalf("IsProfileComplete failed: %v", err)
	}
	if !done {
		t.Error("expected profile-complete after SetOnboardingComplete")
	}

	// Missing users fail closed rather than erroring.
	done, err = store.IsProfileComplete(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("IsProfileComplete failed: %v", err)
	}
	if done {
		t.Error("missing user should not be profile-complete")
	}

	if err := store.SetOnboardingComplete(ctx, primitive.NewObjectID(), true); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}
