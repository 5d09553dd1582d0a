// internal/session/handle.go
package session

import (
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/checkride/api/schemas"
)

// Handle is the live session/browser binding for exactly one test unit.
// It is created by the Manager at unit start, exclusively owned by that
// unit, and destroyed by Teardown on every exit path. When the session is
// remote it also carries the provider's job record id.
type Handle struct {
	id     string
	unitID string
	mode   schemas.Mode
	driver schemas.Driver
	jobID  string

	closed    atomic.Bool
	closeOnce sync.Once
}

// ID returns the handle's unique id.
func (h *Handle) ID() string { return h.id }

// UnitID returns the id of the test unit that owns this handle.
func (h *Handle) UnitID() string { return h.unitID }

// Mode returns the execution mode the session was opened in.
func (h *Handle) Mode() schemas.Mode { return h.mode }

// JobID returns the remote job id, or "" for local sessions.
func (h *Handle) JobID() string { return h.jobID }

// Driver returns the driver bound to this session.
func (h *Handle) Driver() schemas.Driver { return h.driver }

// Closed reports whether teardown has begun. Once true, no further facade
// calls are permitted against the handle.
func (h *Handle) Closed() bool { return h.closed.Load() }
