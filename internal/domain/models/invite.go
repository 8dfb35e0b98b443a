// internal/domain/models/invite.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invite modes. "join" tokens let a user join the circle without admin
// approval; "direct_add" tokens are minted when an admin adds a specific
// person and hands them a link. Redemption behaves identically for both;
// the mode is retained for provenance and UI.
const (
	InviteModeJoin      = "join"
	InviteModeDirectAdd = "direct_add"
)

// Invite is a redeemable token granting ACTIVE membership in a circle.
//
// UsedCount only ever moves through conditional updates in the invite
// store, so two concurrent redemptions of a single-use token can never
// both succeed.
type Invite struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token    string             `bson:"token" json:"token"`
	CircleID primitive.ObjectID `bson:"circle_id" json:"circle_id"`

	Mode      string     `bson:"mode" json:"mode"`
	MaxUses   *int       `bson:"max_uses,omitempty" json:"max_uses,omitempty"` // nil = unlimited
	UsedCount int        `bson:"used_count" json:"used_count"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"` // nil = no expiry
	IsRevoked bool       `bson:"is_revoked" json:"is_revoked"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsValidInviteMode checks an invite mode value.
func IsValidInviteMode(mode string) bool {
	return mode == InviteModeJoin || mode == InviteModeDirectAdd
}

// IsExpired reports whether the invite has passed its expiration time.
// Invites with no expiry never expire.
func (i Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// IsExhausted reports whether the invite has no uses remaining.
func (i Invite) IsExhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}
