// internal/app/store/memberships/membershipstore.go
package membershipstore

// Terminology: membership identity
//   - A membership is keyed by the (circle_id, user_id) pair. The unique
//     index on that pair makes duplicate-insert races fail loudly; every
//     join/leave/rejoin cycle mutates the same document.

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("membership not found")

	// ErrNotPending is returned when a status-conditional transition finds
	// the membership in a different state than expected. The caller lost a
	// race (e.g. simultaneous approve and remove) and must not apply its
	// side effects.
	ErrNotPending = errors.New("membership is not pending")

	ErrNotActive = errors.New("membership is not active")

	ErrDuplicateMembership = errors.New("user already has a membership in this circle")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circle_memberships")}
}

func (s *Store) Get(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"circle_id": circleID, "user_id": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}
	return m, nil
}

// CountActive returns the authoritative count of ACTIVE memberships for a
// circle. Capacity decisions re-derive this rather than trusting the
// cached member_count on the circle document.
func (s *Store) CountActive(ctx context.Context, circleID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"circle_id": circleID, "status": models.StatusActive})
}

// CreateOwner inserts the founding OWNER membership at circle creation.
// This is the only way an OWNER membership comes into existence; no other
// operation in this service assigns or transfers the role.
func (s *Store) CreateOwner(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	m := models.Membership{
		ID:        primitive.NewObjectID(),
		CircleID:  circleID,
		UserID:    userID,
		Role:      models.RoleOwner,
		Status:    models.StatusActive,
		JoinedAt:  &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// UpsertPending records a join request: it inserts a PENDING membership,
// or revives an existing LEFT/REMOVED document back to PENDING. The
// existing role survives revival. Callers handle ACTIVE/PENDING documents
// before calling (both are idempotent no-ops at the engine level).
func (s *Store) UpsertPending(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"circle_id": circleID,
		"user_id":   userID,
		"status":    bson.M{"$in": bson.A{models.StatusLeft, models.StatusRemoved}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":       models.StatusPending,
			"requested_at": now,
			"updated_at":   now,
		},
		"$unset": bson.M{
			"joined_at":  "",
			"left_at":    "",
			"removed_at": "",
			"removed_by": "",
		},
		"$setOnInsert": bson.M{
			"circle_id":  circleID,
			"user_id":    userID,
			"role":       models.RoleMember,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m models.Membership
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		// A concurrent insert for the same pair trips the unique index
		// instead of creating a second row.
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Activate commits the PENDING → ACTIVE transition as a single conditional
// update keyed on the expected prior status, which linearizes concurrent
// approve/remove actions on the same membership: exactly one wins.
func (s *Store) Activate(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"circle_id": circleID,
		"user_id":   userID,
		"status":    models.StatusPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusActive,
			"joined_at":  now,
			"updated_at": now,
		},
		"$unset": bson.M{"requested_at": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m models.Membership
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Membership{}, ErrNotPending
		}
		return models.Membership{}, err
	}
	return m, nil
}

// ActivateViaInvite commits the invite-redemption transition: it inserts an
// ACTIVE membership, or moves an existing PENDING/LEFT/REMOVED document to
// ACTIVE. A revived membership keeps its previous role; a fresh one starts
// as MEMBER. Callers short-circuit already-ACTIVE memberships beforehand.
func (s *Store) ActivateViaInvite(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"circle_id": circleID,
		"user_id":   userID,
		"status": bson.M{"$in": bson.A{
			models.StatusPending, models.StatusLeft, models.StatusRemoved,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusActive,
			"joined_at":  now,
			"updated_at": now,
		},
		"$unset": bson.M{
			"requested_at": "",
			"left_at":      "",
			"removed_at":   "",
			"removed_by":   "",
		},
		"$setOnInsert": bson.M{
			"circle_id":  circleID,
			"user_id":    userID,
			"role":       models.RoleMember,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m models.Membership
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// MarkLeft commits ACTIVE → LEFT, conditional on the membership still
// being ACTIVE.
func (s *Store) MarkLeft(ctx context.Context, circleID, userID primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"circle_id": circleID,
		"user_id":   userID,
		"status":    models.StatusActive,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusLeft,
			"left_at":    now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m models.Membership
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Membership{}, ErrNotActive
		}
		return models.Membership{}, err
	}
	return m, nil
}

// MarkRemoved commits ACTIVE/PENDING → REMOVED and reports the prior
// document, so the caller decrements the circle's member count only when
// an ACTIVE membership was consumed.
func (s *Store) MarkRemoved(ctx context.Context, circleID, userID, removedBy primitive.ObjectID) (models.Membership, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"circle_id": circleID,
		"user_id":   userID,
		"status":    bson.M{"$in": bson.A{models.StatusActive, models.StatusPending}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusRemoved,
			"removed_at": now,
			"removed_by": removedBy,
			"updated_at": now,
		},
	}
	// Return the pre-image: prior.Status tells the caller whether an
	// ACTIVE slot was freed.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var prior models.Membership
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prior); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}
	return prior, nil
}

// ListByCircle returns memberships for a circle, optionally filtered by
// status, ordered by creation time.
func (s *Store) ListByCircle(ctx context.Context, circleID primitive.ObjectID, status string, limit int64) ([]models.Membership, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	filter := bson.M{"circle_id": circleID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns a user's memberships across circles, optionally
// filtered by status.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, status string) ([]models.Membership, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByCircle removes all memberships for a circle. Used when a circle
// is deleted. Returns the number of documents deleted.
func (s *Store) DeleteByCircle(ctx context.Context, circleID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"circle_id": circleID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
