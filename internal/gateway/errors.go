package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors. Use errors.Is to classify anything returned by the gateway.
var (
	ErrNetwork          = errors.New("catalog api unreachable")
	ErrClient           = errors.New("catalog api rejected the request")
	ErrServer           = errors.New("catalog api failed")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("authorization rejected")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrValidation       = errors.New("invalid input")
)

// Kind classifies a failed call
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindClient
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a transport or HTTP failure. Detail carries the server's
// human-readable explanation for 4xx responses when one was sent.
type Error struct {
	Kind   Kind
	Status int
	Method string
	Path   string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindNetwork:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Cause)
	case e.Detail != "":
		return e.Detail
	default:
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
	}
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrClient:
		return e.Kind == KindClient
	case ErrServer:
		return e.Kind == KindServer
	case ErrNotFound:
		return e.Status == 404
	}
	return false
}

func (e *Error) Unwrap() error { return e.Cause }

// AuthError means the login was rejected or the token is no longer accepted.
// Message is safe to show to the operator.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

func (e *AuthError) Unwrap() error { return e.Cause }

// ValidationError is raised before any network call is made
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotAuthenticated is returned by operations that require a session when none exists
func NotAuthenticated() *AuthError {
	return &AuthError{Message: "Not logged in", Cause: ErrNotAuthenticated}
}

// parseDetail extracts the "detail" member of an error body. It is either a
// string or a list of validation entries each carrying a "msg".
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var entries []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Msg == "" {
			continue
		}
		if len(entry.Loc) > 0 {
			msgs = append(msgs, fmt.Sprintf("%v: %s", entry.Loc[len(entry.Loc)-1], entry.Msg))
			continue
		}
		msgs = append(msgs, entry.Msg)
	}
	return strings.Join(msgs, "; ")
}
