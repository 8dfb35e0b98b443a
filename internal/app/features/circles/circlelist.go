// internal/app/features/circles/circlelist.go
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

// ServeCircleList handles GET /api/circles.
func (h *Handler) ServeCircleList(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			limit = n
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list public circles")
	defer cancel()

	circles, err := h.Engine.ListPublicCircles(ctx, limit)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"circles": circleViews(circles)})
}

// ServeCircle handles GET /api/circles/{id}.
func (h *Handler) ServeCircle(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get circle")
	defer cancel()

	circle, err := h.Engine.GetCircle(ctx, res.UserID, circleID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"circle": circleView(circle)})
}

// ServeMyMemberships handles GET /api/circles/mine.
func (h *Handler) ServeMyMemberships(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list my memberships")
	defer cancel()

	ms, err := h.Engine.ListMine(ctx, res.UserID, r.URL.Query().Get("status"))
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": membershipViews(ms)})
}
