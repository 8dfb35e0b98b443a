// internal/app/features/login/handler.go
package login

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/users"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/apierr"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/auth"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/limits"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/ratelimit"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler holds dependencies for the login feature: email + password
// against the users collection, issuing the session cookie the rest of
// the API consumes.
type Handler struct {
	Users   *userstore.Store
	Limiter *ratelimit.LoginLimiter
	Log     *zap.Logger
}

// NewHandler constructs a login Handler. The limiter throttles attempts
// per source IP and per target email.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   userstore.New(db),
		Limiter: ratelimit.NewLoginLimiter(),
		Log:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// errBadCredentials covers both unknown user and wrong password; the
// response does not reveal which.
var errBadCredentials = apierr.New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)).Decode(&req); err != nil {
		apierr.Write(w, r, h.Log, apierr.Validation("invalid JSON body"))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		apierr.Write(w, r, h.Log, apierr.Validation("email and password are required"))
		return
	}

	if ok, reason := h.Limiter.Check(r, email); !ok {
		apierr.Write(w, r, h.Log, apierr.New("RATE_LIMITED", http.StatusTooManyRequests, reason))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login")
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			apierr.Write(w, r, h.Log, errBadCredentials)
			return
		}
		apierr.Write(w, r, h.Log, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		apierr.Write(w, r, h.Log, errBadCredentials)
		return
	}
	if user.Status != "" && user.Status != "active" {
		apierr.Write(w, r, h.Log, apierr.New("ACCOUNT_DISABLED", http.StatusForbidden, "this account is disabled"))
		return
	}

	if err := auth.SignIn(w, r, auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.DisplayName,
		Email: user.Email,
	}); err != nil {
		h.Log.Error("failed to write session cookie", zap.Error(err))
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Limiter.ResetEmail(email)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"user": loginResponse{
		ID:    user.ID.Hex(),
		Name:  user.DisplayName,
		Email: user.Email,
	}})
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := auth.SignOut(w, r); err != nil {
		h.Log.Warn("failed to clear session cookie", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
