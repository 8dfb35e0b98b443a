// internal/app/system/apierr/apierr.go

// Package apierr defines the typed errors the circle engine surfaces to
// callers. Every rejected action carries a stable machine-readable code so
// clients can distinguish "already a member" from "circle is full" from
// "not allowed". Infrastructure failures are collapsed to a generic
// INTERNAL error at the transport boundary so storage detail never leaks.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Error is an API-visible failure with a stable code and an HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// New builds an Error with an overriding message.
func New(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// Precondition errors: surfaced immediately, never retried automatically.
var (
	ErrFeatureDisabled   = &Error{Code: "FEATURE_DISABLED", Status: http.StatusNotFound, Message: "this feature is not available"}
	ErrUnauthenticated   = &Error{Code: "UNAUTHENTICATED", Status: http.StatusUnauthorized, Message: "sign in required"}
	ErrProfileIncomplete = &Error{Code: "PROFILE_INCOMPLETE", Status: http.StatusForbidden, Message: "complete your profile before joining circles"}
	ErrCirclePrivate     = &Error{Code: "CIRCLE_PRIVATE", Status: http.StatusForbidden, Message: "this circle is private; you need an invite to join"}
)

// Authorization errors.
var (
	ErrForbidden              = &Error{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: "you do not have permission to do that"}
	ErrNotAMember             = &Error{Code: "NOT_A_MEMBER", Status: http.StatusForbidden, Message: "you are not an active member of this circle"}
	ErrAdminRemoveSelf        = &Error{Code: "ADMIN_REMOVE_SELF_FORBIDDEN", Status: http.StatusForbidden, Message: "admins cannot remove their own membership"}
)

// Not-found errors.
var (
	ErrCircleNotFound     = &Error{Code: "CIRCLE_NOT_FOUND", Status: http.StatusNotFound, Message: "circle not found"}
	ErrMembershipNotFound = &Error{Code: "MEMBERSHIP_NOT_FOUND", Status: http.StatusNotFound, Message: "membership not found"}
	ErrInviteInvalid      = &Error{Code: "INVITE_INVALID", Status: http.StatusNotFound, Message: "invite not found or revoked"}
)

// Conflict errors: retrying without caller intervention would repeat the
// same conflict, so these are never retried automatically.
var (
	ErrCapacityExceeded     = &Error{Code: "CAPACITY_EXCEEDED", Status: http.StatusConflict, Message: "this circle is full"}
	ErrMembershipNotPending = &Error{Code: "MEMBERSHIP_NOT_PENDING", Status: http.StatusConflict, Message: "membership is not awaiting approval"}
	ErrInviteExpired        = &Error{Code: "INVITE_EXPIRED", Status: http.StatusConflict, Message: "this invite has expired"}
	ErrInviteExhausted      = &Error{Code: "INVITE_EXHAUSTED", Status: http.StatusConflict, Message: "this invite has no uses remaining"}
	ErrOwnerCannotLeave     = &Error{Code: "OWNER_CANNOT_LEAVE", Status: http.StatusConflict, Message: "the circle owner cannot leave the circle"}
	ErrOwnerCannotBeRemoved = &Error{Code: "OWNER_CANNOT_BE_REMOVED", Status: http.StatusConflict, Message: "the circle owner cannot be removed"}
)

// ErrInternal is the generic infrastructure failure. Safe to retry from
// the caller side; no partial state is assumed committed.
var ErrInternal = &Error{Code: "INTERNAL", Status: http.StatusInternalServerError, Message: "something went wrong; please try again"}

// Validation builds a 400 with the VALIDATION code and a specific message.
func Validation(msg string) *Error {
	return &Error{Code: "VALIDATION", Status: http.StatusBadRequest, Message: msg}
}

// From classifies err for the transport boundary. Typed *Error values
// propagate unchanged; anything else is an infrastructure error.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal
}

// envelope is the JSON wire shape for errors.
type envelope struct {
	Error *Error `json:"error"`
}

// Write serializes err as the standard JSON error envelope. Non-typed
// errors are logged with their real cause and surfaced as INTERNAL.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	ae := From(err)
	if ae == ErrInternal && log != nil {
		log.Error("internal error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	_ = json.NewEncoder(w).Encode(envelope{Error: ae})
}
