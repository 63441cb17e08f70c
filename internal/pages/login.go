package pages

import (
	"context"
	"fmt"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// Login form locators.
var (
	UsernameField = browser.ByID("user-name")
	PasswordField = browser.ByID("password")
	LoginButton   = browser.ByID("login-button")
	LoginError    = browser.ByCSS(`[data-test="error"]`)
)

// LoginPage is the storefront's sign-in screen.
type LoginPage struct {
	s   *Session
	url string
}

// NewLoginPage returns the login page served at url.
func NewLoginPage(s *Session, url string) *LoginPage {
	return &LoginPage{s: s, url: url}
}

// Open navigates to the login URL and waits for the username field.
func (p *LoginPage) Open(ctx context.Context) error {
	obs.From(ctx).Info("open_login", "pkg", "pages", "url", p.url)
	if err := p.s.driver.Navigate(ctx, p.url); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	return p.s.WaitVisible(ctx, UsernameField)
}

// EnterUsername types the user name.
func (p *LoginPage) EnterUsername(ctx context.Context, name string) error {
	return p.s.typeInto(ctx, UsernameField, name)
}

// EnterPassword types the password.
func (p *LoginPage) EnterPassword(ctx context.Context, password string) error {
	return p.s.typeInto(ctx, PasswordField, password)
}

// ClickLogin submits the form.
func (p *LoginPage) ClickLogin(ctx context.Context) error {
	return p.s.Click(ctx, LoginButton)
}

// Login fills in the form and submits it. The returned HomePage shares the
// session; Login does not wait for the navigation to finish.
func (p *LoginPage) Login(ctx context.Context, name, password string) (*HomePage, error) {
	if err := p.EnterUsername(ctx, name); err != nil {
		return nil, err
	}
	if err := p.EnterPassword(ctx, password); err != nil {
		return nil, err
	}
	if err := p.ClickLogin(ctx); err != nil {
		return nil, err
	}
	return NewHomePage(p.s), nil
}

// ErrorMessage returns the login error banner text, or "" when there is none.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	n, err := p.s.driver.Count(ctx, LoginError)
	if err != nil || n == 0 {
		return "", err
	}
	ctx, cancel := p.s.bounded(ctx)
	defer cancel()
	return p.s.driver.Text(ctx, LoginError)
}
