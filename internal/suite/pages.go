// internal/suite/pages.go
// Example page objects. A page object holds a reference to the action
// facade and composes it; there is no base-page inheritance chain.
package suite

import (
	"context"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/facade"
)

// LoginPage drives a conventional username/password form.
type LoginPage struct {
	act *facade.Facade
}

// Locators are declared once and never mutated.
var (
	locUsername     = schemas.ByID("username")
	locPassword     = schemas.ByID("password")
	locLoginButton  = schemas.ByCSS("button[type=submit]")
	locFlashMessage = schemas.ByID("flash")
	locLogoutLink   = schemas.ByCSS("a[href='/logout']")
)

// NewLoginPage binds a login page to the unit's facade.
func NewLoginPage(act *facade.Facade) *LoginPage {
	return &LoginPage{act: act}
}

// Open navigates to the login form.
func (p *LoginPage) Open(ctx context.Context, baseURL string) error {
	return p.act.Visit(ctx, baseURL+"/login")
}

// SignIn submits credentials.
func (p *LoginPage) SignIn(ctx context.Context, user, pass string) error {
	if err := p.act.Type(ctx, locUsername, user); err != nil {
		return err
	}
	if err := p.act.Type(ctx, locPassword, pass); err != nil {
		return err
	}
	return p.act.Click(ctx, locLoginButton)
}

// FlashMessage reads the post-submit banner text.
func (p *LoginPage) FlashMessage(ctx context.Context) (string, error) {
	return p.act.Text(ctx, locFlashMessage)
}

// LoggedIn reports whether the logout link is visible. Absence is a normal
// answer here, not a failure.
func (p *LoginPage) LoggedIn(ctx context.Context) (bool, error) {
	return p.act.IsDisplayed(ctx, locLogoutLink)
}
