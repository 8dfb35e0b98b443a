// internal/app/features/circles/join.go
package circles

import (
	"net/http"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/gates"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleJoin handles POST /api/circles/{id}/join. Joining a public circle
// records a PENDING request; joining while already a member is a no-op
// success so double-submits never surface errors.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "join circle")
	defer cancel()

	m, err := h.Engine.JoinPublic(ctx, res.UserID, circleID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": membershipView(m)})
}

// HandleLeave handles POST /api/circles/{id}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "leave circle")
	defer cancel()

	m, err := h.Engine.Leave(ctx, res.UserID, circleID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": membershipView(m)})
}
