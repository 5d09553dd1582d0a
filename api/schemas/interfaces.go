// api/schemas/interfaces.go
package schemas

import "context"

// ActionKind identifies a driver-level element action.
type ActionKind string

const (
	ActionClick ActionKind = "click"
	ActionType  ActionKind = "type"
	ActionClear ActionKind = "clear"
)

// StateProperty identifies a readable element property.
type StateProperty string

const (
	StateText      StateProperty = "text"
	StateValue     StateProperty = "value"
	StateDisplayed StateProperty = "displayed"
	StateEnabled   StateProperty = "enabled"
)

// Driver is the opaque browser-automation capability the core consumes.
// Implementations talk whatever protocol they like; the core never does.
// Errors returned here are raw; classification into the Failure taxonomy
// happens in the Action Facade.
type Driver interface {
	// Navigate instructs the session to load the given URL.
	Navigate(ctx context.Context, url string) error
	// Locate resolves a locator to zero or more element handles. An empty
	// slice with a nil error means "nothing matched right now"; the facade's
	// wait loop will retry.
	Locate(ctx context.Context, locator Locator) ([]ElementHandle, error)
	// ElementAction performs an action against a previously located handle.
	ElementAction(ctx context.Context, handle ElementHandle, kind ActionKind, args ...string) error
	// ElementState reads a property of a previously located handle.
	ElementState(ctx context.Context, handle ElementHandle, property StateProperty) (string, error)
	// CloseSession terminates the underlying browser session.
	CloseSession(ctx context.Context) error
}

// Provider is the remote execution provider the session manager consumes
// when a test unit runs in REMOTE mode.
type Provider interface {
	// OpenSession opens a remote job and returns a driver bound to the
	// remote browser plus the provider's job id.
	OpenSession(ctx context.Context, envelope CapabilityEnvelope) (Driver, string, error)
	// ReportOutcome records the final pass/fail status on the job. Must be
	// called before CloseJob or the job is left with no final status.
	ReportOutcome(ctx context.Context, jobID string, passed bool) error
	// CloseJob closes the remote job record.
	CloseJob(ctx context.Context, jobID string) error
}
