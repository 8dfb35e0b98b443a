// Package gates provides the access-guard checks for HTTP handlers.
// Gates compose precondition checks, write the JSON error response when a
// check fails, and hand the resolved caller identity back to the handler.
//
// # Three-Tier Authorization Pattern
//
//  1. Route-Level Middleware (auth.RequireSignedIn)
//     Applied in routes.go files for coarse-grained access control.
//
//  2. Handler-Level Gates (this package)
//     RequireCirclesAccess runs the precondition chain (feature
//     availability, authentication, profile completeness) in order and
//     short-circuits on the first unmet precondition.
//
//  3. Policy Layer (internal/app/policy/circlepolicy)
//     Resource-specific authorization requiring database lookups: "does
//     this caller hold an ACTIVE (admin) membership in this circle".
package gates

import (
	"context"
	"net/http"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/authz"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/featureflag"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProfileChecker is the onboarding collaborator: it reports whether a
// user's profile is complete enough for community features.
type ProfileChecker interface {
	IsProfileComplete(ctx context.Context, userID primitive.ObjectID) (bool, error)
}

// Result contains the outcome of an access-guard check.
type Result struct {
	Name   string
	UserID primitive.ObjectID
	OK     bool
}

// RequireCirclesAccess runs the circles precondition chain in order:
// feature enabled → authenticated → profile complete. On the first unmet
// precondition it writes the JSON error and returns OK=false; later
// checks are not evaluated.
func RequireCirclesAccess(w http.ResponseWriter, r *http.Request, flags featureflag.Checker, profiles ProfileChecker, log *zap.Logger) Result {
	if !flags.Enabled(featureflag.Circles) {
		apierr.Write(w, r, log, apierr.ErrFeatureDisabled)
		return Result{OK: false}
	}

	name, uid, ok := authz.UserCtx(r)
	if !ok {
		apierr.Write(w, r, log, apierr.ErrUnauthenticated)
		return Result{OK: false}
	}

	complete, err := profiles.IsProfileComplete(r.Context(), uid)
	if err != nil {
		apierr.Write(w, r, log, err)
		return Result{OK: false}
	}
	if !complete {
		apierr.Write(w, r, log, apierr.ErrProfileIncomplete)
		return Result{OK: false}
	}

	return Result{Name: name, UserID: uid, OK: true}
}

// RequireAuth ensures a user is authenticated, without the circles
// feature or profile checks. Used by surfaces outside the circles guard.
func RequireAuth(w http.ResponseWriter, r *http.Request, log *zap.Logger) Result {
	name, uid, ok := authz.UserCtx(r)
	if !ok {
		apierr.Write(w, r, log, apierr.ErrUnauthenticated)
		return Result{OK: false}
	}
	return Result{Name: name, UserID: uid, OK: true}
}
