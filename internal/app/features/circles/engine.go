// internal/app/features/circles/engine.go

// The membership engine orchestrates the circle, membership, and invite
// stores. Every state transition is committed as a single conditional
// update in the owning store; the engine's job is ordering those commits
// and compensating when a later write fails after an earlier one
// succeeded. member_count is an advisory cache: capacity decisions use
// the atomic ReserveSlot gate plus an authoritative CountActive precheck,
// never the cached value alone.
package circles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/policy/circlepolicy"
	circlestore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/circles"
	invitestore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/invites"
	membershipstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/memberships"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/htmlsanitize"
	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Engine implements the membership workflows on top of the three stores.
type Engine struct {
	circles     *circlestore.Store
	memberships *membershipstore.Store
	invites     *invitestore.Store
	inviteTTL   time.Duration
	log         *zap.Logger
}

// NewEngine builds an Engine over db. inviteTTL is applied to invites
// created without an explicit expiry; zero means invites never expire by
// default.
func NewEngine(db *mongo.Database, inviteTTL time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		circles:     circlestore.New(db),
		memberships: membershipstore.New(db),
		invites:     invitestore.New(db),
		inviteTTL:   inviteTTL,
		log:         logger,
	}
}

/* -------------------------------------------------------------------------- */
/* Circle lifecycle                                                           */
/* -------------------------------------------------------------------------- */

// CreateCircleInput carries the caller-supplied circle attributes.
type CreateCircleInput struct {
	Name        string
	Description string
	Visibility  string
	Type        string
	MaxMembers  *int
}

// CreateCircle creates a circle and its founding OWNER membership. The
// cached member_count starts at 1 to account for the owner.
func (e *Engine) CreateCircle(ctx context.Context, callerID primitive.ObjectID, in CreateCircleInput) (models.Circle, models.Membership, error) {
	name := strings.TrimSpace(htmlsanitize.PlainText(in.Name))
	if name == "" {
		return models.Circle{}, models.Membership{}, apierr.Validation("name is required")
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !models.IsValidVisibility(visibility) {
		return models.Circle{}, models.Membership{}, apierr.Validation("visibility must be public or private")
	}
	if in.MaxMembers != nil && *in.MaxMembers < 1 {
		return models.Circle{}, models.Membership{}, apierr.Validation("max_members must be a positive integer")
	}

	circle := models.Circle{
		Name:        name,
		Description: htmlsanitize.Sanitize(in.Description),
		Visibility:  visibility,
		Type:        strings.TrimSpace(in.Type),
		MaxMembers:  in.MaxMembers,
		CreatedBy:   callerID,
	}

	created, err := e.circles.Create(ctx, circle, 1)
	if err != nil {
		return models.Circle{}, models.Membership{}, err
	}

	owner, err := e.memberships.CreateOwner(ctx, created.ID, callerID)
	if err != nil {
		// Don't leave an ownerless circle behind.
		if _, derr := e.circles.Delete(ctx, created.ID); derr != nil {
			e.log.Error("failed to roll back circle after owner insert failure",
				zap.String("circle_id", created.ID.Hex()),
				zap.Error(derr))
		}
		return models.Circle{}, models.Membership{}, err
	}
	return created, owner, nil
}

// GetCircle returns a circle summary. Private circles are only visible to
// their active members.
func (e *Engine) GetCircle(ctx context.Context, callerID, circleID primitive.ObjectID) (models.Circle, error) {
	circle, err := e.circles.GetByID(ctx, circleID)
	if err != nil {
		return models.Circle{}, mapCircleErr(err)
	}
	if circle.Visibility == models.VisibilityPrivate {
		if _, err := circlepolicy.RequireActiveMembership(ctx, e.memberships, circleID, callerID); err != nil {
			return models.Circle{}, err
		}
	}
	return circle, nil
}

// ListPublicCircles returns public circles, newest first.
func (e *Engine) ListPublicCircles(ctx context.Context, limit int64) ([]models.Circle, error) {
	return e.circles.ListPublic(ctx, limit)
}

// UpdateCircleInput carries circle attribute changes. Nil pointers leave
// the attribute unchanged; UnsetMaxMembers clears the capacity cap.
type UpdateCircleInput struct {
	Name            *string
	Description     *string
	Visibility      *string
	Type            *string
	MaxMembers      *int
	UnsetMaxMembers bool
}

// UpdateCircle applies attribute changes. Requires ADMIN. Lowering
// max_members below the current active count is allowed: existing members
// keep their seats and new joins are gated until attrition brings the
// count back under the cap.
func (e *Engine) UpdateCircle(ctx context.Context, callerID, circleID primitive.ObjectID, in UpdateCircleInput) (models.Circle, error) {
	circle, err := e.circles.GetByID(ctx, circleID)
	if err != nil {
		return models.Circle{}, mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return models.Circle{}, err
	}

	name := circle.Name
	if in.Name != nil {
		name = strings.TrimSpace(htmlsanitize.PlainText(*in.Name))
		if name == "" {
			return models.Circle{}, apierr.Validation("name is required")
		}
	}
	desc := circle.Description
	if in.Description != nil {
		desc = htmlsanitize.Sanitize(*in.Description)
	}
	visibility := circle.Visibility
	if in.Visibility != nil {
		visibility = *in.Visibility
		if !models.IsValidVisibility(visibility) {
			return models.Circle{}, apierr.Validation("visibility must be public or private")
		}
	}
	circleType := circle.Type
	if in.Type != nil {
		circleType = strings.TrimSpace(*in.Type)
	}
	maxMembers := circle.MaxMembers
	if in.UnsetMaxMembers {
		maxMembers = nil
	} else if in.MaxMembers != nil {
		if *in.MaxMembers < 1 {
			return models.Circle{}, apierr.Validation("max_members must be a positive integer")
		}
		maxMembers = in.MaxMembers
	}

	if err := e.circles.UpdateInfo(ctx, circleID, name, desc, visibility, circleType, maxMembers, in.UnsetMaxMembers); err != nil {
		return models.Circle{}, mapCircleErr(err)
	}
	updated, err := e.circles.GetByID(ctx, circleID)
	if err != nil {
		return models.Circle{}, mapCircleErr(err)
	}
	return updated, nil
}

// DeleteCircle deletes a circle along with its memberships and invites.
// Only the OWNER may delete.
func (e *Engine) DeleteCircle(ctx context.Context, callerID, circleID primitive.ObjectID) error {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return mapCircleErr(err)
	}
	m, err := circlepolicy.RequireActiveMembership(ctx, e.memberships, circleID, callerID)
	if err != nil {
		return err
	}
	if m.Role != models.RoleOwner {
		return apierr.ErrForbidden
	}

	if _, err := e.invites.DeleteByCircle(ctx, circleID); err != nil {
		return err
	}
	if _, err := e.memberships.DeleteByCircle(ctx, circleID); err != nil {
		return err
	}
	if _, err := e.circles.Delete(ctx, circleID); err != nil {
		return err
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Join / approve / leave / remove                                            */
/* -------------------------------------------------------------------------- */

// JoinPublic records a join request against a public circle. Requesting
// while already ACTIVE or already PENDING is a no-op success returning
// the current membership, so UI races never surface spurious failures.
func (e *Engine) JoinPublic(ctx context.Context, callerID, circleID primitive.ObjectID) (models.Membership, error) {
	circle, err := e.circles.GetByID(ctx, circleID)
	if err != nil {
		return models.Membership{}, mapCircleErr(err)
	}

	existing, err := e.memberships.Get(ctx, circleID, callerID)
	switch {
	case err == nil && (existing.IsActive() || existing.IsPending()):
		return existing, nil
	case err != nil && !errors.Is(err, membershipstore.ErrNotFound):
		return models.Membership{}, err
	}

	if circle.Visibility != models.VisibilityPublic {
		return models.Membership{}, apierr.ErrCirclePrivate
	}

	m, err := e.memberships.UpsertPending(ctx, circleID, callerID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrDuplicateMembership) {
			// Lost an insert race; the winner's record is authoritative.
			return e.memberships.Get(ctx, circleID, callerID)
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Approve commits PENDING → ACTIVE for the target member. Requires ADMIN.
// The capacity check and the member_count increment are one conditional
// update (ReserveSlot); if the activation then loses a race the reserved
// slot is released.
func (e *Engine) Approve(ctx context.Context, callerID, circleID, targetUserID primitive.ObjectID) (models.Membership, error) {
	circle, err := e.circles.GetByID(ctx, circleID)
	if err != nil {
		return models.Membership{}, mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return models.Membership{}, err
	}

	target, err := e.memberships.Get(ctx, circleID, targetUserID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return models.Membership{}, apierr.ErrMembershipNotFound
		}
		return models.Membership{}, err
	}
	if !target.IsPending() {
		return models.Membership{}, apierr.ErrMembershipNotPending
	}

	// Authoritative precheck: the cached member_count may have drifted,
	// so re-derive the active count before consuming a slot.
	activeCount, err := e.memberships.CountActive(ctx, circleID)
	if err != nil {
		return models.Membership{}, err
	}
	if err := circlestore.EnsureCapacity(circle, activeCount, 1); err != nil {
		return models.Membership{}, apierr.ErrCapacityExceeded
	}

	if err := e.circles.ReserveSlot(ctx, circleID); err != nil {
		return models.Membership{}, mapCircleErr(err)
	}

	activated, err := e.memberships.Activate(ctx, circleID, targetUserID)
	if err != nil {
		e.releaseSlot(ctx, circleID)
		if errors.Is(err, membershipstore.ErrNotPending) {
			return models.Membership{}, apierr.ErrMembershipNotPending
		}
		return models.Membership{}, err
	}
	return activated, nil
}

// Leave commits ACTIVE → LEFT for the caller's own membership. The OWNER
// cannot leave; ownership transfer is out of scope for this engine.
func (e *Engine) Leave(ctx context.Context, callerID, circleID primitive.ObjectID) (models.Membership, error) {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return models.Membership{}, mapCircleErr(err)
	}

	m, err := e.memberships.Get(ctx, circleID, callerID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return models.Membership{}, apierr.ErrNotAMember
		}
		return models.Membership{}, err
	}
	if m.Role == models.RoleOwner {
		return models.Membership{}, apierr.ErrOwnerCannotLeave
	}
	if !m.IsActive() {
		return models.Membership{}, apierr.ErrNotAMember
	}

	left, err := e.memberships.MarkLeft(ctx, circleID, callerID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotActive) || errors.Is(err, membershipstore.ErrNotFound) {
			return models.Membership{}, apierr.ErrNotAMember
		}
		return models.Membership{}, err
	}
	e.releaseSlot(ctx, circleID)
	return left, nil
}

// Remove commits ACTIVE/PENDING → REMOVED for the target member.
// Requires ADMIN. The OWNER can never be removed, and an ADMIN cannot
// remove their own membership (the OWNER can remove an ADMIN).
func (e *Engine) Remove(ctx context.Context, callerID, circleID, targetUserID primitive.ObjectID) (models.Membership, error) {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return models.Membership{}, mapCircleErr(err)
	}
	caller, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID)
	if err != nil {
		return models.Membership{}, err
	}

	target, err := e.memberships.Get(ctx, circleID, targetUserID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return models.Membership{}, apierr.ErrMembershipNotFound
		}
		return models.Membership{}, err
	}
	if target.Role == models.RoleOwner {
		return models.Membership{}, apierr.ErrOwnerCannotBeRemoved
	}
	if targetUserID == callerID && caller.Role != models.RoleOwner {
		return models.Membership{}, apierr.ErrAdminRemoveSelf
	}

	prior, err := e.memberships.MarkRemoved(ctx, circleID, targetUserID, callerID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			// Already LEFT or REMOVED; nothing to commit.
			return models.Membership{}, apierr.ErrMembershipNotFound
		}
		return models.Membership{}, err
	}
	// Only an ACTIVE membership held a slot.
	if prior.IsActive() {
		e.releaseSlot(ctx, circleID)
	}

	removed, err := e.memberships.Get(ctx, circleID, targetUserID)
	if err != nil {
		return models.Membership{}, err
	}
	return removed, nil
}

// ListMembers returns a circle's membership roster, optionally filtered
// by status. Requires ADMIN (the roster includes PENDING requests).
func (e *Engine) ListMembers(ctx context.Context, callerID, circleID primitive.ObjectID, status string, limit int64) ([]models.Membership, error) {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return nil, mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return nil, err
	}
	return e.memberships.ListByCircle(ctx, circleID, status, limit)
}

// ListMine returns the caller's memberships, optionally filtered by status.
func (e *Engine) ListMine(ctx context.Context, callerID primitive.ObjectID, status string) ([]models.Membership, error) {
	return e.memberships.ListForUser(ctx, callerID, status)
}

/* -------------------------------------------------------------------------- */
/* Invites                                                                    */
/* -------------------------------------------------------------------------- */

// CreateInviteInput carries the caller-supplied invite attributes.
type CreateInviteInput struct {
	Mode      string
	MaxUses   *int
	ExpiresAt *time.Time
}

// CreateInvite mints an invite token for a circle. Requires ADMIN. When
// no expiry is given and the engine has a default TTL, it is applied.
func (e *Engine) CreateInvite(ctx context.Context, callerID, circleID primitive.ObjectID, in CreateInviteInput) (models.Invite, error) {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return models.Invite{}, mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return models.Invite{}, err
	}

	mode := in.Mode
	if mode == "" {
		mode = models.InviteModeJoin
	}
	expiresAt := in.ExpiresAt
	if expiresAt == nil && e.inviteTTL > 0 {
		t := time.Now().UTC().Add(e.inviteTTL)
		expiresAt = &t
	}

	inv, err := e.invites.Create(ctx, circleID, callerID, mode, in.MaxUses, expiresAt)
	if err != nil {
		switch {
		case errors.Is(err, invitestore.ErrBadMode):
			return models.Invite{}, apierr.Validation("mode must be join or direct_add")
		case errors.Is(err, invitestore.ErrBadMaxUses):
			return models.Invite{}, apierr.Validation("max_uses must be a positive integer")
		case errors.Is(err, invitestore.ErrPastExpiry):
			return models.Invite{}, apierr.Validation("expires_at must be in the future")
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// RedeemInvite activates the caller's membership via an invite token.
// Redeeming while already ACTIVE is a no-op success and consumes neither
// a capacity slot nor an invite use.
func (e *Engine) RedeemInvite(ctx context.Context, callerID primitive.ObjectID, token string) (models.Membership, models.Circle, error) {
	inv, err := e.invites.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, invitestore.ErrNotFound) {
			return models.Membership{}, models.Circle{}, apierr.ErrInviteInvalid
		}
		return models.Membership{}, models.Circle{}, err
	}
	if inv.IsExpired(time.Now().UTC()) {
		return models.Membership{}, models.Circle{}, apierr.ErrInviteExpired
	}
	if inv.IsExhausted() {
		return models.Membership{}, models.Circle{}, apierr.ErrInviteExhausted
	}

	circle, err := e.circles.GetByID(ctx, inv.CircleID)
	if err != nil {
		// The circle is gone; the token no longer grants anything.
		if errors.Is(err, circlestore.ErrNotFound) {
			return models.Membership{}, models.Circle{}, apierr.ErrInviteInvalid
		}
		return models.Membership{}, models.Circle{}, err
	}

	existing, err := e.memberships.Get(ctx, circle.ID, callerID)
	if err == nil && existing.IsActive() {
		return existing, circle, nil
	}
	if err != nil && !errors.Is(err, membershipstore.ErrNotFound) {
		return models.Membership{}, models.Circle{}, err
	}

	if err := e.circles.ReserveSlot(ctx, circle.ID); err != nil {
		return models.Membership{}, models.Circle{}, mapCircleErr(err)
	}

	// Atomic use accounting: exactly one of N concurrent redeemers of a
	// single-use token gets past this.
	if _, err := e.invites.Redeem(ctx, token); err != nil {
		e.releaseSlot(ctx, circle.ID)
		switch {
		case errors.Is(err, invitestore.ErrExhausted):
			return models.Membership{}, models.Circle{}, apierr.ErrInviteExhausted
		case errors.Is(err, invitestore.ErrNotFound):
			return models.Membership{}, models.Circle{}, apierr.ErrInviteInvalid
		}
		return models.Membership{}, models.Circle{}, err
	}

	m, err := e.memberships.ActivateViaInvite(ctx, circle.ID, callerID)
	if err != nil {
		// Unwind both counters; the redeem already consumed a use.
		e.releaseSlot(ctx, circle.ID)
		if rerr := e.invites.ReleaseUse(ctx, token); rerr != nil {
			e.log.Error("failed to release invite use after activation failure",
				zap.String("token", token),
				zap.Error(rerr))
		}
		return models.Membership{}, models.Circle{}, err
	}
	return m, circle, nil
}

// RevokeInvite disables an invite token. Requires ADMIN.
func (e *Engine) RevokeInvite(ctx context.Context, callerID, circleID primitive.ObjectID, token string) error {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return err
	}
	if err := e.invites.Revoke(ctx, circleID, token); err != nil {
		if errors.Is(err, invitestore.ErrNotFound) {
			return apierr.ErrInviteInvalid
		}
		return err
	}
	return nil
}

// ListInvites returns a circle's invites. Requires ADMIN.
func (e *Engine) ListInvites(ctx context.Context, callerID, circleID primitive.ObjectID) ([]models.Invite, error) {
	if _, err := e.circles.GetByID(ctx, circleID); err != nil {
		return nil, mapCircleErr(err)
	}
	if _, err := circlepolicy.RequireAdminMembership(ctx, e.memberships, circleID, callerID); err != nil {
		return nil, err
	}
	return e.invites.ListByCircle(ctx, circleID)
}

/* -------------------------------------------------------------------------- */
/* Helpers                                                                    */
/* -------------------------------------------------------------------------- */

// releaseSlot is the compensating decrement for a reserved or vacated
// slot. Failures are logged, not propagated: the reconciliation worker
// repairs any resulting drift.
func (e *Engine) releaseSlot(ctx context.Context, circleID primitive.ObjectID) {
	if err := e.circles.IncrementMemberCount(ctx, circleID, -1); err != nil {
		e.log.Error("failed to release member count slot",
			zap.String("circle_id", circleID.Hex()),
			zap.Error(err))
	}
}

// mapCircleErr translates circle store sentinels to API errors.
func mapCircleErr(err error) error {
	switch {
	case errors.Is(err, circlestore.ErrNotFound):
		return apierr.ErrCircleNotFound
	case errors.Is(err, circlestore.ErrCapacityExceeded):
		return apierr.ErrCapacityExceeded
	case errors.Is(err, circlestore.ErrDuplicateSlug):
		return apierr.Validation("a circle with a similar name already exists")
	}
	return err
}
