// internal/domain/models/circle.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Circle visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Circle represents a bounded community of users.
//
// NOTE:
//   - Membership is not embedded on Circle. All membership lives in the
//     circle_memberships collection; MemberCount is an advisory cache of
//     the number of ACTIVE memberships. The authoritative count is always
//     derivable from that collection, and a background worker reconciles
//     drift (see workers.CountReconcile).
type Circle struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Slug        string             `bson:"slug" json:"slug"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Description string             `bson:"description" json:"description"`

	Visibility string `bson:"visibility" json:"visibility"`           // "public" | "private"
	MaxMembers *int   `bson:"max_members,omitempty" json:"max_members,omitempty"` // nil = unlimited
	Type       string `bson:"type,omitempty" json:"type,omitempty"`   // free-form tag, e.g. "step-study"

	MemberCount int64 `bson:"member_count" json:"member_count"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsValidVisibility checks a visibility value.
func IsValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
