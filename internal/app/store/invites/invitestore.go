// internal/app/store/invites/invitestore.go
package invitestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// TokenBytes is the raw entropy of an invite token (32 bytes = 256 bits,
	// base64 raw-URL encoded to 43 URL-safe characters).
	TokenBytes = 32
)

var (
	ErrNotFound = errors.New("invite not found or revoked")

	// ErrExhausted is returned by Redeem when the conditional increment
	// matched no document: every remaining use was consumed, possibly by a
	// concurrent redeemer an instant ago.
	ErrExhausted = errors.New("invite has no uses remaining")

	ErrBadMode       = errors.New(`mode must be "join" or "direct_add"`)
	ErrBadMaxUses    = errors.New("max_uses must be a positive integer")
	ErrPastExpiry    = errors.New("expires_at must be in the future")
	ErrDuplicateToken = errors.New("invite token collision")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circle_invites")}
}

// NewToken returns an unguessable URL-safe token.
func NewToken() string {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Create mints an invite for a circle. maxUses and expiresAt are optional;
// when present they must be positive / in the future.
func (s *Store) Create(ctx context.Context, circleID, createdBy primitive.ObjectID, mode string, maxUses *int, expiresAt *time.Time) (models.Invite, error) {
	if !models.IsValidInviteMode(mode) {
		return models.Invite{}, ErrBadMode
	}
	if maxUses != nil && *maxUses <= 0 {
		return models.Invite{}, ErrBadMaxUses
	}
	now := time.Now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return models.Invite{}, ErrPastExpiry
	}

	inv := models.Invite{
		ID:        primitive.NewObjectID(),
		Token:     NewToken(),
		CircleID:  circleID,
		Mode:      mode,
		MaxUses:   maxUses,
		UsedCount: 0,
		ExpiresAt: expiresAt,
		IsRevoked: false,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			// 256 bits of entropy; if this ever fires something is wrong
			// with the RNG, not the index.
			return models.Invite{}, ErrDuplicateToken
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// GetByToken looks up a non-revoked invite. Expiry is NOT checked here;
// callers decide how to surface expired invites.
func (s *Store) GetByToken(ctx context.Context, token string) (models.Invite, error) {
	var inv models.Invite
	filter := bson.M{"token": token, "is_revoked": bson.M{"$ne": true}}
	if err := s.c.FindOne(ctx, filter).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invite{}, ErrNotFound
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// Redeem consumes one use of the invite in a single conditional update:
// the filter admits the document only while it is unrevoked and under its
// use limit, and the pipeline increments used_count and flips is_revoked
// in the same write when the post-increment count reaches max_uses. Two
// simultaneous redeemers of a single-use invite therefore cannot both
// succeed: the loser's update matches nothing and Redeem reports
// ErrExhausted.
func (s *Store) Redeem(ctx context.Context, token string) (models.Invite, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"token":      token,
		"is_revoked": bson.M{"$ne": true},
		"$or": bson.A{
			bson.M{"max_uses": bson.M{"$exists": false}},
			bson.M{"max_uses": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$used_count", "$max_uses"}}},
		},
	}
	update := bson.A{
		bson.M{"$set": bson.M{
			"used_count": bson.M{"$add": bson.A{"$used_count", 1}},
			"updated_at": now,
			"is_revoked": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{bson.M{"$ifNull": bson.A{"$max_uses", nil}}, nil}},
					bson.M{"$gte": bson.A{
						bson.M{"$add": bson.A{"$used_count", 1}},
						"$max_uses",
					}},
				}},
				true,
				"$is_revoked",
			}},
		}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var inv models.Invite
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invite{}, ErrExhausted
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// ReleaseUse is the compensating decrement for a redeem whose follow-up
// membership write failed: it hands the consumed use back. A token the
// redeem had just revoked by exhaustion (used_count == max_uses) is
// re-opened; an invite revoked explicitly stays revoked.
func (s *Store) ReleaseUse(ctx context.Context, token string) error {
	now := time.Now().UTC()
	filter := bson.M{"token": token, "used_count": bson.M{"$gt": 0}}
	update := bson.A{
		bson.M{"$set": bson.M{
			"used_count": bson.M{"$add": bson.A{"$used_count", -1}},
			"updated_at": now,
			"is_revoked": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{bson.M{"$ifNull": bson.A{"$max_uses", nil}}, nil}},
					bson.M{"$eq": bson.A{"$used_count", "$max_uses"}},
				}},
				false,
				"$is_revoked",
			}},
		}},
	}
	_, err := s.c.UpdateOne(ctx, filter, update)
	return err
}

// Revoke permanently disables an invite.
func (s *Store) Revoke(ctx context.Context, circleID primitive.ObjectID, token string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "circle_id": circleID},
		bson.M{"$set": bson.M{"is_revoked": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByCircle returns all invites for a circle, newest first.
func (s *Store) ListByCircle(ctx context.Context, circleID primitive.ObjectID) ([]models.Invite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"circle_id": circleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Invite
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByCircle removes all invites for a circle.
func (s *Store) DeleteByCircle(ctx context.Context, circleID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"circle_id": circleID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
