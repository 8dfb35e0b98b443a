// internal/app/features/circles/views.go
package circles

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mrlynn/dailyreflections-sub008/internal/domain/models"
)

// CircleView is the JSON summary of a circle.
type CircleView struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Visibility  string    `json:"visibility"`
	Type        string    `json:"type,omitempty"`
	MaxMembers  *int      `json:"max_members,omitempty"`
	MemberCount int64     `json:"member_count"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipView is the JSON shape of one membership record.
type MembershipView struct {
	CircleID    string     `json:"circle_id"`
	UserID      string     `json:"user_id"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
}

// InviteView is the JSON shape of one invite. The token is included:
// invites are only listed to circle admins, who need it to share.
type InviteView struct {
	Token     string     `json:"token"`
	CircleID  string     `json:"circle_id"`
	Mode      string     `json:"mode"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	UsedCount int        `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsRevoked bool       `json:"is_revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

func circleView(c models.Circle) CircleView {
	return CircleView{
		ID:          c.ID.Hex(),
		Slug:        c.Slug,
		Name:        c.Name,
		Description: c.Description,
		Visibility:  c.Visibility,
		Type:        c.Type,
		MaxMembers:  c.MaxMembers,
		MemberCount: c.MemberCount,
		CreatedBy:   c.CreatedBy.Hex(),
		CreatedAt:   c.CreatedAt,
	}
}

func membershipView(m models.Membership) MembershipView {
	return MembershipView{
		CircleID:    m.CircleID.Hex(),
		UserID:      m.UserID.Hex(),
		Role:        m.Role,
		Status:      m.Status,
		RequestedAt: m.RequestedAt,
		JoinedAt:    m.JoinedAt,
		LeftAt:      m.LeftAt,
		RemovedAt:   m.RemovedAt,
	}
}

func inviteView(i models.Invite) InviteView {
	return InviteView{
		Token:     i.Token,
		CircleID:  i.CircleID.Hex(),
		Mode:      i.Mode,
		MaxUses:   i.MaxUses,
		UsedCount: i.UsedCount,
		ExpiresAt: i.ExpiresAt,
		IsRevoked: i.IsRevoked,
		CreatedAt: i.CreatedAt,
	}
}

func membershipViews(ms []models.Membership) []MembershipView {
	out := make([]MembershipView, 0, len(ms))
	for _, m := range ms {
		out = append(out, membershipView(m))
	}
	return out
}

func circleViews(cs []models.Circle) []CircleView {
	out := make([]CircleView, 0, len(cs))
	for _, c := range cs {
		out = append(out, circleView(c))
	}
	return out
}

func inviteViews(is []models.Invite) []InviteView {
	out := make([]InviteView, 0, len(is))
	for _, i := range is {
		out = append(out, inviteView(i))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
