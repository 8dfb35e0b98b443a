// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the current user's name, Mongo ObjectID, and a found
// flag. If no user is present in context or the user ID is malformed, it
// returns "", NilObjectID, false. Callers can trust that ok=true means a
// valid, authenticated user with a valid ObjectID.
//
// Platform-level roles do not exist here: authority over a circle comes
// from the caller's membership role in that circle, resolved by
// circlepolicy against the membership store.
func UserCtx(r *http.Request) (name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed for security.
		// This should not happen in normal operation; indicates session corruption.
		return "", primitive.NilObjectID, false
	}
	return user.Name, userID, true
}
