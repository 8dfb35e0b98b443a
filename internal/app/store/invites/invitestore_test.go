package invitestore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	invitestore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/invites"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"github.com/mrlynn/dailyreflections-sub008/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewToken(t *testing.T) {
	a := invitestore.NewToken()
	b := invitestore.NewToken()
	if a == b {
		t.Error("two tokens should never collide")
	}
	// 32 bytes raw-URL base64 encode to 43 characters.
	if len(a) != 43 {
		t.Errorf("token length: got %d, want 43", len(a))
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	createdBy := primitive.NewObjectID()

	if _, err := store.Create(ctx, circleID, createdBy, "bogus", nil, nil); !errors.Is(err, invitestore.ErrBadMode) {
		t.Errorf("bad mode: got %v, want ErrBadMode", err)
	}
	if _, err := store.Create(ctx, circleID, createdBy, models.InviteModeJoin, testutil.IntPtr(0), nil); !errors.Is(err, invitestore.ErrBadMaxUses) {
		t.Errorf("zero max uses: got %v, want ErrBadMaxUses", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := store.Create(ctx, circleID, createdBy, models.InviteModeJoin, nil, &past); !errors.Is(err, invitestore.ErrPastExpiry) {
		t.Errorf("past expiry: got %v, want ErrPastExpiry", err)
	}

	inv, err := store.Create(ctx, circleID, createdBy, models.InviteModeDirectAdd, testutil.IntPtr(5), nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if inv.Token == "" {
		t.Error("token not generated")
	}
	if inv.UsedCount != 0 || inv.IsRevoked {
		t.Errorf("fresh invite state: %+v", inv)
	}
}

func TestGetByToken_ExcludesRevoked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	createdBy := primitive.NewObjectID()
	fixtures.CreateInvite(ctx, circleID, createdBy, "tok-live", nil, nil)

	if _, err := store.GetByToken(ctx, "tok-live"); err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}

	if err := store.Revoke(ctx, circleID, "tok-live"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.GetByToken(ctx, "tok-live"); !errors.Is(err, invitestore.ErrNotFound) {
		t.Errorf("revoked lookup: got %v, want ErrNotFound", err)
	}
}

func TestGetByToken_ReturnsExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Expiry is the caller's concern, not the lookup's.
	past := time.Now().UTC().Add(-time.Hour)
	fixtures.CreateInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "tok-stale", nil, &past)

	inv, err := store.GetByToken(ctx, "tok-stale")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if !inv.IsExpired(time.Now().UTC()) {
		t.Error("invite should report expired")
	}
}

func TestRedeem_UnlimitedInvite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "tok-unlimited", nil, nil)

	for i := 1; i <= 3; i++ {
		inv, err := store.Redeem(ctx, "tok-unlimited")
		if err != nil {
			t.Fatalf("Redeem %d failed: %v", i, err)
		}
		if inv.UsedCount != i {
			t.Errorf("used count after redeem %d: got %d", i, inv.UsedCount)
		}
		if inv.IsRevoked {
			t.Error("unlimited invite must never self-revoke")
		}
	}
}

func TestRedeem_RevokesOnExhaustion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "tok-two", testutil.IntPtr(2), nil)

	inv, err := store.Redeem(ctx, "tok-two")
	if err != nil {
		t.Fatalf("first Redeem failed: %v", err)
	}
	if inv.IsRevoked {
		t.Error("invite revoked with a use remaining")
	}

	inv, err = store.Redeem(ctx, "tok-two")
	if err != nil {
		t.Fatalf("second Redeem failed: %v", err)
	}
	if !inv.IsRevoked {
		t.Error("final use should revoke the invite in the same write")
	}

	if _, err := store.Redeem(ctx, "tok-two"); !errors.Is(err, invitestore.ErrExhausted) {
		t.Errorf("redeem past limit: got %v, want ErrExhausted", err)
	}
}

func TestRedeem_ConcurrentSingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "tok-one", testutil.IntPtr(1), nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Redeem(ctx, "tok-one"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("a single-use invite admitted %d redeemers", winners)
	}
}

func TestReleaseUse_ReopensExhaustedInvite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "tok-refund", testutil.IntPtr(1), nil)

	if _, err := store.Redeem(ctx, "tok-refund"); err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if err := store.ReleaseUse(ctx, "tok-refund"); err != nil {
		t.Fatalf("ReleaseUse failed: %v", err)
	}

	inv, err := store.GetByToken(ctx, "tok-refund")
	if err != nil {
		t.Fatalf("invite should be visible again after refund: %v", err)
	}
	if inv.UsedCount != 0 {
		t.Errorf("used count after refund: got %d, want 0", inv.UsedCount)
	}
	if inv.IsRevoked {
		t.Error("refund should un-revoke an exhaustion revocation")
	}
}

func TestReleaseUse_KeepsExplicitRevocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	fixtures.CreateInvite(ctx, circleID, primitive.NewObjectID(), "tok-banned", testutil.IntPtr(5), nil)

	if _, err := store.Redeem(ctx, "tok-banned"); err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if err := store.Revoke(ctx, circleID, "tok-banned"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := store.ReleaseUse(ctx, "tok-banned"); err != nil {
		t.Fatalf("ReleaseUse failed: %v", err)
	}

	// used_count (1) != max_uses (5), so the revocation flag is untouched.
	if _, err := store.GetByToken(ctx, "tok-banned"); !errors.Is(err, invitestore.ErrNotFound) {
		t.Errorf("explicitly revoked invite came back: %v", err)
	}
}

func TestRevoke_ScopedToCircle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	fixtures.CreateInvite(ctx, circleID, primitive.NewObjectID(), "tok-scoped", nil, nil)

	// A different circle's admin cannot revoke this token.
	if err := store.Revoke(ctx, primitive.NewObjectID(), "tok-scoped"); !errors.Is(err, invitestore.ErrNotFound) {
		t.Errorf("cross-circle revoke: got %v, want ErrNotFound", err)
	}
	if err := store.Revoke(ctx, circleID, "tok-scoped"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
}

func TestListByCircleAndDeleteByCircle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	createdBy := primitive.NewObjectID()
	fixtures.CreateInvite(ctx, circleID, createdBy, "tok-a", nil, nil)
	fixtures.CreateInvite(ctx, circleID, createdBy, "tok-b", nil, nil)
	fixtures.CreateInvite(ctx, primitive.NewObjectID(), createdBy, "tok-other", nil, nil)

	list, err := store.ListByCircle(ctx, circleID)
	if err != nil {
		t.Fatalf("ListByCircle failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("invites: got %d, want 2", len(list))
	}

	n, err := store.DeleteByCircle(ctx, circleID)
	if err != nil {
		t.Fatalf("DeleteByCircle failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted: got %d, want 2", n)
	}
}
