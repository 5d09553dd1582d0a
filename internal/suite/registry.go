// internal/suite/registry.go
package suite

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xkilldash9x/checkride/internal/facade"
)

// UnitFunc is one independently runnable acceptance test. It receives the
// action facade for its exclusively owned session and returns nil on pass,
// an *AssertionError on an assertion failure, or any other error for an
// unexpected condition. Units must not share mutable fixture state; a unit
// that depends on another having run first is a suite defect.
type UnitFunc func(ctx context.Context, act *facade.Facade) error

// Registry maps test-unit ids to their implementations.
type Registry struct {
	mu    sync.RWMutex
	units map[string]UnitFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]UnitFunc)}
}

// Register adds a unit under the given id. Registering the same id twice
// is a programming error and panics, like http.HandleFunc.
func (r *Registry) Register(id string, fn UnitFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.units[id]; dup {
		panic(fmt.Sprintf("suite: duplicate registration of unit %q", id))
	}
	r.units[id] = fn
}

// Lookup returns the unit for id.
func (r *Registry) Lookup(id string) (UnitFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.units[id]
	return fn, ok
}

// IDs returns the registered unit ids in sorted order. Run order is decided
// by the coordinator's seed, never by registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.units))
	for id := range r.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AssertionError marks a test-unit failure that is a failed expectation,
// as opposed to an unexpected error. The coordinator maps it to FAIL;
// everything else becomes ERROR.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "assertion failed: " + e.Msg }

// Assertf builds an AssertionError.
func Assertf(format string, args ...any) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}
