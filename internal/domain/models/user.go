// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a platform account.
//
// NOTE:
//   - Circle membership is not embedded on User. Use the circle_memberships
//     collection to discover a user's circles.
//   - OnboardingComplete is set by the onboarding flow when the profile has
//     everything the community features require; circle actions are gated
//     on it.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DisplayName  string             `bson:"display_name" json:"display_name"`
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"email_ci" json:"email_ci"` // lowercase, diacritics-stripped
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`

	Status             string `bson:"status,omitempty" json:"status,omitempty"`
	OnboardingComplete bool   `bson:"onboarding_complete" json:"onboarding_complete"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
