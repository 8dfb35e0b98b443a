// Package circlepolicy provides authorization policies for circle
// membership actions.
//
// Authorization rules:
//   - OWNER and ADMIN memberships may approve, remove, and manage invites;
//     the ADMIN threshold includes OWNER (member < admin < owner)
//   - Any ACTIVE membership may read the member list of its circle
//   - Non-members and PENDING/LEFT/REMOVED memberships have no authority
package circlepolicy

import (
	"context"
	"errors"

	membershipstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/memberships"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireActiveMembership loads the caller's membership and fails with
// NOT_A_MEMBER unless it exists and is ACTIVE.
func RequireActiveMembership(ctx context.Context, store *membershipstore.Store, circleID, userID primitive.ObjectID) (models.Membership, error) {
	m, err := store.Get(ctx, circleID, userID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return models.Membership{}, apierr.ErrNotAMember
		}
		return models.Membership{}, err
	}
	if !m.IsActive() {
		return models.Membership{}, apierr.ErrNotAMember
	}
	return m, nil
}

// RequireAdminMembership is RequireActiveMembership plus the ADMIN role
// threshold. A caller with no standing at all gets NOT_A_MEMBER; an
// active plain MEMBER gets FORBIDDEN.
func RequireAdminMembership(ctx context.Context, store *membershipstore.Store, circleID, userID primitive.ObjectID) (models.Membership, error) {
	m, err := RequireActiveMembership(ctx, store, circleID, userID)
	if err != nil {
		return models.Membership{}, err
	}
	if !models.RoleAtLeast(m.Role, models.RoleAdmin) {
		return models.Membership{}, apierr.ErrForbidden
	}
	return m, nil
}
