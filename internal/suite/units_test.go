// internal/suite/units_test.go
package suite

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
	"github.com/xkilldash9x/checkride/internal/facade"
	"github.com/xkilldash9x/checkride/internal/session"
)

// loginSite scripts the login form the example units drive: typed fields,
// a submit button, a flash banner and a logout link that only exists while
// signed in.
type loginSite struct {
	mu       sync.Mutex
	fields   map[string]string
	flash    string
	loggedIn bool
}

func newLoginSite() *loginSite {
	return &loginSite{fields: map[string]string{}}
}

func (s *loginSite) Navigate(ctx context.Context, url string) error {
	if !strings.HasSuffix(url, "/login") {
		return errors.New("unexpected navigation target: " + url)
	}
	return nil
}

func (s *loginSite) Locate(ctx context.Context, locator schemas.Locator) ([]schemas.ElementHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch locator.Value {
	case "username", "password", "button[type=submit]":
		return []schemas.ElementHandle{{Ref: locator.Value}}, nil
	case "flash":
		if s.flash == "" {
			return nil, nil
		}
		return []schemas.ElementHandle{{Ref: "flash"}}, nil
	case "a[href='/logout']":
		if !s.loggedIn {
			return nil, nil
		}
		return []schemas.ElementHandle{{Ref: "logout"}}, nil
	}
	return nil, nil
}

func (s *loginSite) ElementAction(ctx context.Context, h schemas.ElementHandle, kind schemas.ActionKind, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case schemas.ActionClear:
		s.fields[h.Ref] = ""
	case schemas.ActionType:
		s.fields[h.Ref] += strings.Join(args, "")
	case schemas.ActionClick:
		switch h.Ref {
		case "button[type=submit]":
			if s.fields["username"] == "tomsmith" && s.fields["password"] == "SuperSecretPassword!" {
				s.loggedIn = true
				s.flash = "You logged into a secure area!"
			} else if s.fields["username"] != "tomsmith" {
				s.flash = "Your username is invalid!"
			} else {
				s.flash = "Your password is invalid!"
			}
		case "logout":
			s.loggedIn = false
			s.flash = "You logged out of the secure area!"
		}
	}
	return nil
}

func (s *loginSite) ElementState(ctx context.Context, h schemas.ElementHandle, prop schemas.StateProperty) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch prop {
	case schemas.StateText:
		if h.Ref == "flash" {
			return s.flash, nil
		}
		return "", nil
	case schemas.StateDisplayed:
		return "true", nil
	case schemas.StateValue:
		return s.fields[h.Ref], nil
	}
	return "", nil
}

func (s *loginSite) CloseSession(ctx context.Context) error { return nil }

func runUnit(t *testing.T, id string, driver schemas.Driver) error {
	t.Helper()

	registry := NewRegistry()
	RegisterExampleUnits(registry, "https://app.example.test")
	fn, ok := registry.Lookup(id)
	require.True(t, ok, "unit %s not registered", id)

	mgr, err := session.NewManager(
		config.HarnessConfig{Mode: string(schemas.ModeLocal)},
		nil,
		func(ctx context.Context, caps schemas.Capabilities) (schemas.Driver, error) { return driver, nil },
		zap.NewNop(),
	)
	require.NoError(t, err)

	handle, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeLocal, DisplayName: id})
	require.NoError(t, err)
	defer mgr.Teardown(context.Background(), handle, schemas.Outcome{})

	act := facade.New(handle, config.FacadeConfig{
		WaitBudget:   80 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	return fn(context.Background(), act)
}

func TestValidCredentialsUnit(t *testing.T) {
	err := runUnit(t, "login/valid-credentials", newLoginSite())
	assert.NoError(t, err)
}

func TestInvalidCredentialsUnit(t *testing.T) {
	err := runUnit(t, "login/invalid-credentials", newLoginSite())
	assert.NoError(t, err)
}

func TestLogoutRoundtripUnit(t *testing.T) {
	err := runUnit(t, "login/logout-roundtrip", newLoginSite())
	assert.NoError(t, err)
}

func TestUnitAssertsOnWrongFlash(t *testing.T) {
	// A site that rejects every sign-in makes the valid-credentials unit
	// fail its flash assertion rather than error.
	err := runUnit(t, "login/valid-credentials", rejectingSite{newLoginSite()})
	require.Error(t, err)

	var assertion *AssertionError
	assert.True(t, errors.As(err, &assertion), "expected an assertion failure, got %v", err)
}

// rejectingSite forces every sign-in attempt to be rejected.
type rejectingSite struct{ *loginSite }

func (s rejectingSite) ElementAction(ctx context.Context, h schemas.ElementHandle, kind schemas.ActionKind, args ...string) error {
	if kind == schemas.ActionClick && h.Ref == "button[type=submit]" {
		s.mu.Lock()
		s.flash = "Your password is invalid!"
		s.loggedIn = false
		s.mu.Unlock()
		return nil
	}
	return s.loginSite.ElementAction(ctx, h, kind, args...)
}
