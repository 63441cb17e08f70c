// Package scenario holds the browser scenarios shared by the go test suites
// and the smoke CLI.
package scenario

import (
	"context"
	"fmt"

	"github.com/kuitang/swaglabs-e2e/internal/errs"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
	"github.com/kuitang/swaglabs-e2e/internal/pages"
	"github.com/kuitang/swaglabs-e2e/internal/users"
)

// ExpectedTitle is the document title of the inventory screen.
const ExpectedTitle = "Swag Labs"

// UserCanLogin logs every credential in creds into the storefront at appURL,
// checks the landing page and adds one item to the cart. Cookies are cleared
// before and after each user. The first failing user stops the run.
func UserCanLogin(ctx context.Context, s *pages.Session, creds []users.Credential, appURL string) error {
	for i, cred := range creds {
		ctx := obs.WithUser(ctx, cred.UserName)
		log := obs.From(ctx).With("pkg", "scenario")
		log.Info("login_attempt", "index", i, "of", len(creds))

		if err := loginOnce(ctx, s, cred, appURL); err != nil {
			log.Warn("login_failed", "error", err)
			return err
		}
		log.Info("login_passed")
	}
	return nil
}

func loginOnce(ctx context.Context, s *pages.Session, cred users.Credential, appURL string) error {
	d := s.Driver()
	if err := d.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clear cookies before %s: %w", cred.UserName, err)
	}
	if err := assertNoCookies(ctx, s, cred.UserName); err != nil {
		return err
	}
	if err := d.Reload(ctx); err != nil {
		return fmt.Errorf("refresh before %s: %w", cred.UserName, err)
	}

	login := pages.NewLoginPage(s, appURL)
	if err := login.Open(ctx); err != nil {
		return err
	}

	home, err := login.Login(ctx, cred.UserName, cred.Password)
	if err != nil {
		return err
	}

	title, err := s.TitleEventually(ctx, ExpectedTitle)
	if err != nil {
		return err
	}
	if title != ExpectedTitle {
		msg := fmt.Sprintf("user %s: expected title %q, got %q", cred.UserName, ExpectedTitle, title)
		if banner, _ := login.ErrorMessage(ctx); banner != "" {
			msg += fmt.Sprintf(" (login error: %s)", banner)
		}
		return errs.New(errs.Assertion, msg)
	}

	if err := home.IsLoaded(ctx); err != nil {
		return fmt.Errorf("user %s: inventory did not load: %w", cred.UserName, err)
	}
	if err := home.AddToCart(ctx); err != nil {
		return fmt.Errorf("user %s: add to cart: %w", cred.UserName, err)
	}

	if err := d.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clear cookies after %s: %w", cred.UserName, err)
	}
	return nil
}

func assertNoCookies(ctx context.Context, s *pages.Session, user string) error {
	cookies, err := s.Driver().Cookies(ctx)
	if err != nil {
		return err
	}
	if len(cookies) > 0 {
		names := make([]string, 0, len(cookies))
		for _, c := range cookies {
			names = append(names, c.Name)
		}
		return errs.New(errs.Assertion, fmt.Sprintf("user %s: cookies present before login: %v", user, names))
	}
	return nil
}
