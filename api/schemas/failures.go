// api/schemas/failures.go
package schemas

import (
	"errors"
	"fmt"
)

// FailureKind classifies every failure the harness core can surface.
type FailureKind string

const (
	// FailElementNotFound means resolution exhausted the configured wait budget.
	FailElementNotFound FailureKind = "ELEMENT_NOT_FOUND"
	// FailElementNotInteractable means the element exists but cannot receive
	// the requested action (hidden, disabled).
	FailElementNotInteractable FailureKind = "ELEMENT_NOT_INTERACTABLE"
	// FailNavigation means the session was unusable during a visit.
	FailNavigation FailureKind = "NAVIGATION_ERROR"
	// FailSessionClosed means an operation was attempted after teardown.
	FailSessionClosed FailureKind = "SESSION_CLOSED"
	// FailProvider means a remote open/report/close call failed.
	FailProvider FailureKind = "PROVIDER_ERROR"
	// FailConfiguration means the execution mode was missing or unrecognized.
	// Always fatal, raised before any session exists.
	FailConfiguration FailureKind = "CONFIGURATION_ERROR"
)

// ErrNotInteractable is the sentinel drivers wrap when an element exists
// but cannot receive the requested action. The facade classifies it into
// FailElementNotInteractable.
var ErrNotInteractable = errors.New("element not interactable")

// Failure is a classified error. It carries the operation and, when one was
// involved, the locator, so a failing test unit reports what failed and where.
type Failure struct {
	Kind    FailureKind
	Op      string
	Locator Locator
	Err     error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Kind, f.Op)
	if !f.Locator.IsZero() {
		msg += " " + f.Locator.String()
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// IsKind reports whether err is (or wraps) a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

// KindOf extracts the failure kind from err, or "" when err carries none.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
