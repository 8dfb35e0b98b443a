// internal/app/features/circles/invites.go
package circles

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/gates"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/limits"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createInviteRequest struct {
	Mode      string     `json:"mode"`
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HandleCreateInvite handles POST /api/circles/{id}/invites. Admin only.
func (h *Handler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	var req createInviteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)).Decode(&req); err != nil {
		apierr.Write(w, r, h.Log, apierr.Validation("invalid JSON body"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create invite")
	defer cancel()

	inv, err := h.Engine.CreateInvite(ctx, res.UserID, circleID, CreateInviteInput{
		Mode:      req.Mode,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invite": inviteView(inv)})
}

// ServeInvites handles GET /api/circles/{id}/invites. Admin only.
func (h *Handler) ServeInvites(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list invites")
	defer cancel()

	invs, err := h.Engine.ListInvites(ctx, res.UserID, circleID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": inviteViews(invs)})
}

// HandleRevokeInvite handles POST /api/circles/{id}/invites/{token}/revoke.
func (h *Handler) HandleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}
	token := chi.URLParam(r, "token")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "revoke invite")
	defer cancel()

	if err := h.Engine.RevokeInvite(ctx, res.UserID, circleID, token); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRedeemInvite handles POST /api/circles/invites/{token}/redeem.
// Not circle-scoped in the URL: the token alone identifies the circle.
func (h *Handler) HandleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}
	token := chi.URLParam(r, "token")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "redeem invite")
	defer cancel()

	m, circle, err := h.Engine.RedeemInvite(ctx, res.UserID, token)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"membership": membershipView(m),
		"circle":     circleView(circle),
	})
}
