// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership roles. Exactly one OWNER exists per circle; it is assigned at
// circle creation and never reassigned by this service.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// Membership lifecycle statuses. LEFT and REMOVED are terminal but the
// document is retained; a fresh join or invite redemption revives the same
// document rather than inserting a new one.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusLeft    = "left"
	StatusRemoved = "removed"
)

// roleRank orders roles for threshold checks: member < admin < owner.
var roleRank = map[string]int{
	RoleMember: 0,
	RoleAdmin:  1,
	RoleOwner:  2,
}

// RoleAtLeast reports whether role meets or exceeds min. Unknown roles
// never satisfy any threshold.
func RoleAtLeast(role, min string) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	m, ok := roleRank[min]
	if !ok {
		return false
	}
	return r >= m
}

// IsValidRole checks a role value.
func IsValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// Membership is the authoritative join between users and circles.
// Exactly one document per (circle_id, user_id), enforced by a unique index.
type Membership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CircleID primitive.ObjectID `bson:"circle_id" json:"circle_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`

	Role   string `bson:"role" json:"role"`     // "owner" | "admin" | "member"
	Status string `bson:"status" json:"status"` // "pending" | "active" | "left" | "removed"

	RequestedAt *time.Time          `bson:"requested_at,omitempty" json:"requested_at,omitempty"`
	JoinedAt    *time.Time          `bson:"joined_at,omitempty" json:"joined_at,omitempty"`
	LeftAt      *time.Time          `bson:"left_at,omitempty" json:"left_at,omitempty"`
	RemovedAt   *time.Time          `bson:"removed_at,omitempty" json:"removed_at,omitempty"`
	RemovedBy   *primitive.ObjectID `bson:"removed_by,omitempty" json:"removed_by,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsActive reports whether the membership is currently ACTIVE.
func (m Membership) IsActive() bool { return m.Status == StatusActive }

// IsPending reports whether the membership is awaiting approval.
func (m Membership) IsPending() bool { return m.Status == StatusPending }
