// internal/app/store/circles/circlestore.go
package circlestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("circle not found")

	// ErrCapacityExceeded is returned by ReserveSlot when the circle's
	// member_count has reached max_members.
	ErrCapacityExceeded = errors.New("circle is at capacity")

	ErrDuplicateSlug = errors.New("a circle with this slug already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circles")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Circle, error) {
	var c models.Circle
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Circle{}, ErrNotFound
		}
		return models.Circle{}, err
	}
	return c, nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Circle, error) {
	var c models.Circle
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Circle{}, ErrNotFound
		}
		return models.Circle{}, err
	}
	return c, nil
}

// Create inserts a circle. The slug is derived from the name; if another
// circle already holds it, a short random suffix is appended and the
// insert retried once. MemberCount starts at the given seed (1 when the
// founding owner membership is created alongside).
func (s *Store) Create(ctx context.Context, c models.Circle, seedCount int64) (models.Circle, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.NameCI = text.Fold(c.Name)
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Visibility == "" {
		c.Visibility = models.VisibilityPublic
	}
	c.MemberCount = seedCount
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.c.InsertOne(ctx, c)
	if err != nil && wafflemongo.IsDup(err) {
		// Slug collision: retry once with a random suffix.
		c.Slug = c.Slug + "-" + uuid.New().String()[:8]
		_, err = s.c.InsertOne(ctx, c)
	}
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Circle{}, ErrDuplicateSlug
		}
		return models.Circle{}, err
	}
	return c, nil
}

// UpdateInfo mutates the descriptive/policy fields of a circle. Name and
// description are expected to be sanitized by the caller. A nil maxMembers
// leaves the field untouched; to clear a capacity pass unset=true.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc, visibility, circleType string, maxMembers *int, unsetMax bool) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if strings.TrimSpace(name) != "" {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	set["description"] = desc
	if visibility != "" {
		set["visibility"] = visibility
	}
	if circleType != "" {
		set["type"] = circleType
	}
	update := bson.M{"$set": set}
	if maxMembers != nil {
		set["max_members"] = *maxMembers
	} else if unsetMax {
		update["$unset"] = bson.M{"max_members": ""}
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPublic returns public circles ordered by creation time, newest first.
func (s *Store) ListPublic(ctx context.Context, limit int64) ([]models.Circle, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"visibility": models.VisibilityPublic}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Circle
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a circle by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// IncrementMemberCount applies an atomic $inc of delta to member_count.
// It must never be replaced with a read-modify-write: concurrent joins and
// leaves would lose updates.
func (s *Store) IncrementMemberCount(ctx context.Context, id primitive.ObjectID, delta int64) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"member_count": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveSlot is the atomic capacity gate used before committing an ACTIVE
// transition. It increments member_count only while the circle still has
// room (or has no cap), in a single conditional update, so N concurrent
// approvals/redemptions racing for the last slot admit exactly one.
//
// Callers that fail their membership write afterwards must release the
// slot with IncrementMemberCount(ctx, id, -1).
func (s *Store) ReserveSlot(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"max_members": bson.M{"$exists": false}},
			bson.M{"max_members": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$member_count", "$max_members"}}},
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"member_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the circle is gone or it is full; disambiguate for callers.
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return gerr
		}
		return ErrCapacityExceeded
	}
	return nil
}

// SetMemberCount overwrites the cached member_count. Only the
// reconciliation worker uses this; request paths go through the atomic
// increment primitives.
func (s *Store) SetMemberCount(ctx context.Context, id primitive.ObjectID, n int64) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"member_count": n, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IDs returns the ids of every circle. Used by the reconciliation worker.
func (s *Store) IDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// EnsureCapacity is the pure capacity check: it fails when the circle has
// a cap and activeCount+additional would exceed it, and no-ops for
// uncapped circles. activeCount should be re-derived from the membership
// collection when precision matters; the cached member_count can drift.
func EnsureCapacity(c models.Circle, activeCount int64, additional int64) error {
	if c.MaxMembers == nil {
		return nil
	}
	if activeCount+additional > int64(*c.MaxMembers) {
		return ErrCapacityExceeded
	}
	return nil
}

// Slugify derives a URL-safe slug from a display name: case/diacritic
// folded, non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	folded := text.Fold(name)
	var b strings.Builder
	lastHyphen := true // trims leading hyphens
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
