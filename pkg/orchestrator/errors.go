package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// ErrorKind is the closed error taxonomy every failure is normalized into.
// Upstream layers (MCP tools, REST handlers) format these without parsing
// message strings.
type ErrorKind string

const (
	ErrValidation        ErrorKind = "ValidationError"
	ErrNotFound          ErrorKind = "NotFound"
	ErrAmbiguous         ErrorKind = "Ambiguous"
	ErrKindMismatch      ErrorKind = "KindMismatch"
	ErrUnsupportedOption ErrorKind = "UnsupportedOption"
	ErrConflict          ErrorKind = "ConflictError"
	ErrBackend           ErrorKind = "BackendError"
	ErrTimedOut          ErrorKind = "TimedOut"
)

// OpError is a structured operation failure: taxonomy kind, human detail and
// the original backend payload when one exists.
type OpError struct {
	Kind    ErrorKind `json:"kind"`
	Detail  string    `json:"detail"`
	Backend any       `json:"backend,omitempty"`

	// Violations is populated for ErrValidation only and carries every
	// collected field violation, never just the first.
	Violations []FieldViolation `json:"violations,omitempty"`

	// Candidates is populated for ErrAmbiguous only and lists every
	// resource the selector matched.
	Candidates []ResourceRef `json:"candidates,omitempty"`
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// FieldViolation is one failed declarative constraint.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v FieldViolation) String() string {
	return v.Field + ": " + v.Reason
}

func newError(kind ErrorKind, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func validationError(violations []FieldViolation) *OpError {
	details := make([]string, 0, len(violations))
	for _, v := range violations {
		details = append(details, v.String())
	}
	return &OpError{
		Kind:       ErrValidation,
		Detail:     strings.Join(details, "; "),
		Violations: violations,
	}
}

// classifyBackendError maps a raw backend failure into the taxonomy. API
// answers keep their original payload; anything unrecognized stays an opaque
// BackendError.
func classifyBackendError(err error) *OpError {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}
	var apiErr *proxmox.APIError
	if errors.As(err, &apiErr) {
		kind := ErrBackend
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.StatusCode == 409 || strings.Contains(msg, "conflict") || strings.Contains(msg, "lock"):
			kind = ErrConflict
		case apiErr.StatusCode == 404 || strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") || strings.Contains(msg, "no such"):
			kind = ErrNotFound
		}
		return &OpError{Kind: kind, Detail: apiErr.Message, Backend: apiErr}
	}
	return &OpError{Kind: ErrBackend, Detail: err.Error()}
}
