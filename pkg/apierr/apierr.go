// Package apierr defines the error kinds surfaced by the API and their HTTP
// translation. Handlers raise these at the point of detection; nothing is
// retried internally.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
)

type Error struct {
	Kind    Kind
	Message string
	// AllowedLimit is set for rate-limited errors only, e.g. "5 per 1m0s".
	AllowedLimit string
}

func (e *Error) Error() string { return e.Message }

func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

func RateLimited(msg, allowed string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, AllowedLimit: allowed}
}

func Status(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

type body struct {
	Message      string `json:"message"`
	AllowedLimit string `json:"allowedLimit,omitempty"`
}

// Write renders err as the flat {"message": ...} envelope the dashboard
// expects. Unexpected errors become an opaque 500.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	var ae *Error
	if !errors.As(err, &ae) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(body{Message: "Something went wrong. Please try again later."})
		return
	}
	w.WriteHeader(Status(ae.Kind))
	_ = json.NewEncoder(w).Encode(body{Message: ae.Message, AllowedLimit: ae.AllowedLimit})
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
