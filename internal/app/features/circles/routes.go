// internal/app/features/circles/routes.go
package circles

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the circles API, mounted at /api/circles.
// Every handler runs the full access gate itself (feature flag, auth,
// profile completeness), so no middleware is stacked here beyond the
// session loader applied at the top-level router.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// CIRCLES
	r.Post("/", h.HandleCreateCircle)
	r.Get("/", h.ServeCircleList)
	r.Get("/mine", h.ServeMyMemberships)
	r.Get("/{id}", h.ServeCircle)
	r.Patch("/{id}", h.HandleUpdateCircle)
	r.Delete("/{id}", h.HandleDeleteCircle)

	// MEMBERSHIP
	r.Post("/{id}/join", h.HandleJoin)
	r.Post("/{id}/leave", h.HandleLeave)
	r.Get("/{id}/members", h.ServeMembers)
	r.Post("/{id}/members/{userID}/approve", h.HandleApprove)
	r.Post("/{id}/members/{userID}/remove", h.HandleRemove)

	// INVITES
	r.Post("/{id}/invites", h.HandleCreateInvite)
	r.Get("/{id}/invites", h.ServeInvites)
	r.Post("/{id}/invites/{token}/revoke", h.HandleRevokeInvite)
	r.Post("/invites/{token}/redeem", h.HandleRedeemInvite)

	return r
}
