package membershipstore_test

import (
	"errors"
	"sync"
	"testing"

	membershipstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/memberships"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/indexes"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"github.com/mrlynn/dailyreflections-sub008/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	m, err := store.CreateOwner(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("CreateOwner failed: %v", err)
	}
	if m.Role != models.RoleOwner {
		t.Errorf("role: got %q, want %q", m.Role, models.RoleOwner)
	}
	if m.Status != models.StatusActive {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusActive)
	}
	if m.JoinedAt == nil {
		t.Error("joined_at not set")
	}
}

func TestUpsertPending_InsertsFresh(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	m, err := store.UpsertPending(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("UpsertPending failed: %v", err)
	}
	if m.Status != models.StatusPending {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusPending)
	}
	if m.Role != models.RoleMember {
		t.Errorf("role: got %q, want %q", m.Role, models.RoleMember)
	}
	if m.RequestedAt == nil {
		t.Error("requested_at not set")
	}
}

func TestUpsertPending_RevivesLeftMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	prior := fixtures.CreateMembership(ctx, circleID, userID, models.RoleAdmin, models.StatusLeft)

	m, err := store.UpsertPending(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("UpsertPending failed: %v", err)
	}
	if m.ID != prior.ID {
		t.Error("revival created a second document instead of reusing the pair's row")
	}
	if m.Status != models.StatusPending {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusPending)
	}
	// The pre-leave role survives rejoining.
	if m.Role != models.RoleAdmin {
		t.Errorf("role after revival: got %q, want %q", m.Role, models.RoleAdmin)
	}
	if m.LeftAt != nil {
		t.Error("left_at should be cleared on revival")
	}
}

func TestUpsertPending_DuplicateRaceHitsUniqueIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.UpsertPending(ctx, circleID, userID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, membershipstore.ErrDuplicateMembership) {
			t.Errorf("goroutine %d: unexpected error %v", i, err)
		}
	}
	n, err := db.Collection("circle_memberships").CountDocuments(ctx, bson.M{
		"circle_id": circleID, "user_id": userID,
	})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("documents for the pair: got %d, want 1", n)
	}
}

func TestActivate_RequiresPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, userID, models.RoleMember, models.StatusPending)

	m, err := store.Activate(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if m.Status != models.StatusActive {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusActive)
	}
	if m.JoinedAt == nil {
		t.Error("joined_at not set")
	}
	if m.RequestedAt != nil {
		t.Error("requested_at should be cleared")
	}

	// A second Activate finds no PENDING document.
	if _, err := store.Activate(ctx, circleID, userID); !errors.Is(err, membershipstore.ErrNotPending) {
		t.Errorf("re-activate: got %v, want ErrNotPending", err)
	}
}

func TestActivate_MissingMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Activate(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	if !errors.Is(err, membershipstore.ErrNotPending) {
		t.Errorf("got %v, want ErrNotPending", err)
	}
}

func TestActivateViaInvite_InsertsActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.ActivateViaInvite(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("ActivateViaInvite failed: %v", err)
	}
	if m.Status != models.StatusActive || m.Role != models.RoleMember {
		t.Errorf("fresh invite membership: got %q/%q, want active/member", m.Status, m.Role)
	}
}

func TestActivateViaInvite_RevivesRemoved(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	prior := fixtures.CreateMembership(ctx, circleID, userID, models.RoleMember, models.StatusRemoved)

	m, err := store.ActivateViaInvite(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("ActivateViaInvite failed: %v", err)
	}
	if m.ID != prior.ID {
		t.Error("revival created a second document")
	}
	if m.Status != models.StatusActive {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusActive)
	}
	if m.RemovedAt != nil {
		t.Error("removed_at should be cleared")
	}
}

func TestMarkLeft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, userID, models.RoleMember, models.StatusActive)

	m, err := store.MarkLeft(ctx, circleID, userID)
	if err != nil {
		t.Fatalf("MarkLeft failed: %v", err)
	}
	if m.Status != models.StatusLeft {
		t.Errorf("status: got %q, want %q", m.Status, models.StatusLeft)
	}
	if m.LeftAt == nil {
		t.Error("left_at not set")
	}

	if _, err := store.MarkLeft(ctx, circleID, userID); !errors.Is(err, membershipstore.ErrNotActive) {
		t.Errorf("leaving twice: got %v, want ErrNotActive", err)
	}
}

func TestMarkRemoved_ReturnsPreImage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	activeUser := primitive.NewObjectID()
	pendingUser := primitive.NewObjectID()
	removedBy := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, activeUser, models.RoleMember, models.StatusActive)
	fixtures.CreateMembership(ctx, circleID, pendingUser, models.RoleMember, models.StatusPending)

	prior, err := store.MarkRemoved(ctx, circleID, activeUser, removedBy)
	if err != nil {
		t.Fatalf("MarkRemoved failed: %v", err)
	}
	if prior.Status != models.StatusActive {
		t.Errorf("pre-image status: got %q, want %q", prior.Status, models.StatusActive)
	}

	prior, err = store.MarkRemoved(ctx, circleID, pendingUser, removedBy)
	if err != nil {
		t.Fatalf("MarkRemoved of pending failed: %v", err)
	}
	if prior.Status != models.StatusPending {
		t.Errorf("pre-image status: got %q, want %q", prior.Status, models.StatusPending)
	}

	// Both are REMOVED now; a repeat matches nothing.
	if _, err := store.MarkRemoved(ctx, circleID, activeUser, removedBy); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Errorf("removing twice: got %v, want ErrNotFound", err)
	}

	got, err := store.Get(ctx, circleID, activeUser)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.StatusRemoved {
		t.Errorf("stored status: got %q, want %q", got.Status, models.StatusRemoved)
	}
	if got.RemovedBy == nil || *got.RemovedBy != removedBy {
		t.Error("removed_by not recorded")
	}
}

func TestCountActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleOwner, models.StatusActive)
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleMember, models.StatusActive)
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleMember, models.StatusPending)
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleMember, models.StatusLeft)

	n, err := store.CountActive(ctx, circleID)
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if n != 2 {
		t.Errorf("active count: got %d, want 2", n)
	}
}

func TestListByCircleAndListForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	otherCircle := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, userID, models.RoleMember, models.StatusActive)
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleMember, models.StatusPending)
	fixtures.CreateMembership(ctx, otherCircle, userID, models.RoleOwner, models.StatusActive)

	all, err := store.ListByCircle(ctx, circleID, "", 0)
	if err != nil {
		t.Fatalf("ListByCircle failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all memberships: got %d, want 2", len(all))
	}

	pending, err := store.ListByCircle(ctx, circleID, models.StatusPending, 0)
	if err != nil {
		t.Fatalf("ListByCircle(pending) failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending memberships: got %d, want 1", len(pending))
	}

	mine, err := store.ListForUser(ctx, userID, "")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("user memberships: got %d, want 2", len(mine))
	}
}

func TestDeleteByCircle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	circleID := primitive.NewObjectID()
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleOwner, models.StatusActive)
	fixtures.CreateMembership(ctx, circleID, primitive.NewObjectID(), models.RoleMember, models.StatusPending)

	n, err := store.DeleteByCircle(ctx, circleID)
	if err != nil {
		t.Fatalf("DeleteByCircle failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted: got %d, want 2", n)
	}
}
