// internal/app/features/circles/circlecreate.go
package circles

import (
	"encoding/json"
	"net/http"

	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/gates"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/limits"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
)

type createCircleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	Type        string `json:"type"`
	MaxMembers  *int   `json:"max_members"`
}

type createCircleResponse struct {
	Circle     CircleView     `json:"circle"`
	Membership MembershipView `json:"membership"`
}

// HandleCreateCircle handles POST /api/circles.
func (h *Handler) HandleCreateCircle(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireCirclesAccess(w, r, h.Flags, h.Users, h.Log)
	if !res.OK {
		return
	}

	var req createCircleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)).Decode(&req); err != nil {
		apierr.Write(w, r, h.Log, apierr.Validation("invalid JSON body"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create circle")
	defer cancel()

	circle, owner, err := h.Engine.CreateCircle(ctx, res.UserID, CreateCircleInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		Type:        req.Type,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, createCircleResponse{
		Circle:     circleView(circle),
		Membership: membershipView(owner),
	})
}
