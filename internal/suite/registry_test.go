// internal/suite/registry_test.go
package suite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/checkride/internal/facade"
)

func noopUnit(ctx context.Context, act *facade.Facade) error { return nil }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("login/valid-credentials", noopUnit)

	fn, ok := r.Lookup("login/valid-credentials")
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = r.Lookup("login/unknown")
	assert.False(t, ok)
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", noopUnit)
	assert.Panics(t, func() { r.Register("dup", noopUnit) })
}

func TestRegistryIDsAreSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zebra", noopUnit)
	r.Register("alpha", noopUnit)
	r.Register("mango", noopUnit)

	assert.Equal(t, []string{"alpha", "mango", "zebra"}, r.IDs())
}

func TestExampleUnitsRegister(t *testing.T) {
	r := NewRegistry()
	RegisterExampleUnits(r, "")

	ids := r.IDs()
	assert.Contains(t, ids, "login/valid-credentials")
	assert.Contains(t, ids, "login/invalid-credentials")
	assert.Contains(t, ids, "login/logout-roundtrip")
}

func TestAssertf(t *testing.T) {
	err := Assertf("expected %q, got %q", "a", "b")
	require.Error(t, err)

	var assertion *AssertionError
	require.True(t, errors.As(err, &assertion))
	assert.Contains(t, assertion.Error(), `expected "a", got "b"`)

	// Wrapping must not hide the assertion from errors.As.
	wrapped := fmt.Errorf("checking flash: %w", err)
	assert.True(t, errors.As(wrapped, &assertion))
}
