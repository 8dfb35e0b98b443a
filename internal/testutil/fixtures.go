package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with a completed profile.
func (f *Fixtures) CreateUser(ctx context.Context, displayName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                 primitive.NewObjectID(),
		DisplayName:        displayName,
		Email:              email,
		EmailCI:            text.Fold(email),
		Status:             "active",
		OnboardingComplete: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateUserWithPassword creates a test user with a bcrypt password hash,
// for login tests.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, displayName, email, password string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash test password: %v", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:                 primitive.NewObjectID(),
		DisplayName:        displayName,
		Email:              email,
		EmailCI:            text.Fold(email),
		PasswordHash:       string(hash),
		Status:             "active",
		OnboardingComplete: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err = f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateIncompleteUser creates a test user who has not finished onboarding.
func (f *Fixtures) CreateIncompleteUser(ctx context.Context, displayName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:          primitive.NewObjectID(),
		DisplayName: displayName,
		Email:       email,
		EmailCI:     text.Fold(email),
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create incomplete test user: %v", err)
	}
	return user
}

// CreateCircle creates a test circle owned by ownerID, along with the
// OWNER membership, mirroring what the engine does at creation time.
func (f *Fixtures) CreateCircle(ctx context.Context, name string, ownerID primitive.ObjectID, visibility string, maxMembers *int) models.Circle {
	f.t.Helper()

	now := time.Now().UTC()
	circle := models.Circle{
		ID:          primitive.NewObjectID(),
		Slug:        text.Fold(name),
		Name:        name,
		NameCI:      text.Fold(name),
		Visibility:  visibility,
		MaxMembers:  maxMembers,
		MemberCount: 1,
		CreatedBy:   ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("circles").InsertOne(ctx, circle); err != nil {
		f.t.Fatalf("failed to create test circle: %v", err)
	}

	f.CreateMembership(ctx, circle.ID, ownerID, models.RoleOwner, models.StatusActive)
	return circle
}

// CreateMembership inserts a membership record with the given role and
// status. Timestamps are filled in to match the status.
func (f *Fixtures) CreateMembership(ctx context.Context, circleID, userID primitive.ObjectID, role, status string) models.Membership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Membership{
		ID:        primitive.NewObjectID(),
		CircleID:  circleID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch status {
	case models.StatusPending:
		m.RequestedAt = &now
	case models.StatusActive:
		m.JoinedAt = &now
	case models.StatusLeft:
		m.JoinedAt = &now
		m.LeftAt = &now
	case models.StatusRemoved:
		m.JoinedAt = &now
		m.RemovedAt = &now
	}

	if _, err := f.db.Collection("circle_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateInvite inserts an invite with the given token and limits,
// bypassing the store's token generation so tests can use fixed tokens.
func (f *Fixtures) CreateInvite(ctx context.Context, circleID, createdBy primitive.ObjectID, token string, maxUses *int, expiresAt *time.Time) models.Invite {
	f.t.Helper()

	now := time.Now().UTC()
	inv := models.Invite{
		ID:        primitive.NewObjectID(),
		Token:     token,
		CircleID:  circleID,
		Mode:      models.InviteModeJoin,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("circle_invites").InsertOne(ctx, inv); err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}
	return inv
}

// IntPtr returns a pointer to n, for optional capacity and use limits.
func IntPtr(n int) *int { return &n }
