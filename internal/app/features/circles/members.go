// internal/app/features/circles/members.go
package circles

import (
	"net/http"
	"strconv"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/gates"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeMembers handles GET /api/circles/{id}/members. Admin only: the
// roster includes PENDING requests awaiting approval.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			limit = n
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list members")
	defer cancel()

	ms, err := h.Engine.ListMembers(ctx, res.UserID, circleID, r.URL.Query().Get("status"), limit)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": membershipViews(ms)})
}

// HandleApprove handles POST /api/circles/{id}/members/{userID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}
	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrMembershipNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "approve member")
	defer cancel()

	m, err := h.Engine.Approve(ctx, res.UserID, circleID, targetID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": membershipView(m)})
}

// HandleRemove handles POST /api/circles/{id}/members/{userID}/remove.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}
	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrMembershipNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "remove member")
	defer cancel()

	m, err := h.Engine.Remove(ctx, res.UserID, circleID, targetID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": membershipView(m)})
}
