// internal/suite/units.go
package suite

import (
	"context"
	"strings"

	"github.com/xkilldash9x/checkride/internal/facade"
)

// DefaultBaseURL is the target the bundled example units run against.
// Real suites point this at their own deployment via RegisterExampleUnits.
const DefaultBaseURL = "https://the-internet.herokuapp.com"

// RegisterExampleUnits installs the bundled acceptance tests against
// baseURL. Each unit is independent and owns its session for its duration.
func RegisterExampleUnits(r *Registry, baseURL string) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	r.Register("login/valid-credentials", func(ctx context.Context, act *facade.Facade) error {
		page := NewLoginPage(act)
		if err := page.Open(ctx, baseURL); err != nil {
			return err
		}
		if err := page.SignIn(ctx, "tomsmith", "SuperSecretPassword!"); err != nil {
			return err
		}
		msg, err := page.FlashMessage(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(msg, "You logged into a secure area!") {
			return Assertf("unexpected flash message %q", msg)
		}
		ok, err := page.LoggedIn(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return Assertf("logout link not visible after successful sign-in")
		}
		return nil
	})

	r.Register("login/invalid-credentials", func(ctx context.Context, act *facade.Facade) error {
		page := NewLoginPage(act)
		if err := page.Open(ctx, baseURL); err != nil {
			return err
		}
		if err := page.SignIn(ctx, "tomsmith", "wrong-password"); err != nil {
			return err
		}
		msg, err := page.FlashMessage(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(msg, "Your password is invalid!") {
			return Assertf("unexpected flash message %q", msg)
		}
		ok, err := page.LoggedIn(ctx)
		if err != nil {
			return err
		}
		if ok {
			return Assertf("logout link visible after rejected sign-in")
		}
		return nil
	})

	r.Register("login/logout-roundtrip", func(ctx context.Context, act *facade.Facade) error {
		page := NewLoginPage(act)
		if err := page.Open(ctx, baseURL); err != nil {
			return err
		}
		if err := page.SignIn(ctx, "tomsmith", "SuperSecretPassword!"); err != nil {
			return err
		}
		if err := act.Click(ctx, locLogoutLink); err != nil {
			return err
		}
		msg, err := page.FlashMessage(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(msg, "You logged out of the secure area!") {
			return Assertf("unexpected flash message after logout %q", msg)
		}
		return nil
	})
}
