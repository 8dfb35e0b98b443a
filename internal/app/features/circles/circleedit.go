// internal/app/features/circles/circleedit.go
package circles

import (
	"encoding/json"
	"net/http"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/gates"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/limits"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type updateCircleRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Visibility      *string `json:"visibility"`
	Type            *string `json:"type"`
	MaxMembers      *int    `json:"max_members"`
	UnsetMaxMembers bool    `json:"unset_max_members"`
}

// HandleUpdateCircle handles PATCH /api/circles/{id}.
func (h *Handler) HandleUpdateCircle(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	var req updateCircleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)).Decode(&req); err != nil {
		apierr.Write(w, r, h.Log, apierr.Validation("invalid JSON body"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update circle")
	defer cancel()

	circle, err := h.Engine.UpdateCircle(ctx, res.UserID, circleID, UpdateCircleInput{
		Name:            req.Name,
		Description:     req.Description,
		Visibility:      req.Visibility,
		Type:            req.Type,
		MaxMembers:      req.MaxMembers,
		UnsetMaxMembers: req.UnsetMaxMembers,
	})
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"circle": circleView(circle)})
}

// HandleDeleteCircle handles DELETE /api/circles/{id}. Owner only.
func (h *Handler) HandleDeleteCircle(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	circleID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.Log, apierr.ErrCircleNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete circle")
	defer cancel()

	if err := h.Engine.DeleteCircle(ctx, res.UserID, circleID); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
