// Package pages holds the page objects for the Swag Labs storefront.
//
// Page objects share one *Session rather than a common base type. A page
// object never owns the browser: the harness creates and closes the driver,
// and page objects are built fresh on every screen transition.
package pages

import (
	"context"
	"time"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// DefaultWait bounds every explicit wait when the session is built without one.
const DefaultWait = 10 * time.Second

const titlePoll = 50 * time.Millisecond

// Session is the driver plus the wait window page objects block on.
type Session struct {
	driver browser.Driver
	wait   time.Duration
}

// NewSession binds page objects to d. A non-positive wait uses DefaultWait.
func NewSession(d browser.Driver, wait time.Duration) *Session {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Session{driver: d, wait: wait}
}

// Driver returns the underlying browser session.
func (s *Session) Driver() browser.Driver {
	return s.driver
}

// Wait returns the explicit wait window.
func (s *Session) Wait() time.Duration {
	return s.wait
}

// bounded derives the wait context. An earlier caller deadline wins.
func (s *Session) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.wait)
}

// Click waits until loc is clickable, then clicks it.
func (s *Session) Click(ctx context.Context, loc browser.Locator) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	obs.From(ctx).Debug("click", "pkg", "pages", "locator", loc.String())
	return s.driver.Click(ctx, loc)
}

// Title returns the current document title without waiting.
func (s *Session) Title(ctx context.Context) (string, error) {
	return s.driver.Title(ctx)
}

// TitleEventually polls the title until it equals want or the wait window
// runs out, and returns the last title seen. Running out is not an error;
// callers compare the result.
func (s *Session) TitleEventually(ctx context.Context, want string) (string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	ticker := time.NewTicker(titlePoll)
	defer ticker.Stop()
	var last string
	for {
		title, err := s.driver.Title(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, nil
			}
			return "", err
		}
		last = title
		if title == want {
			return title, nil
		}
		select {
		case <-ctx.Done():
			return last, nil
		case <-ticker.C:
		}
	}
}

// AcceptAlert waits for a native dialog, accepts it and returns its text.
func (s *Session) AcceptAlert(ctx context.Context) (string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	msg, err := s.driver.AcceptDialog(ctx)
	if err != nil {
		return "", err
	}
	obs.From(ctx).Debug("alert_accepted", "pkg", "pages", "message", msg)
	return msg, nil
}

// WaitPresent waits until loc is attached to the DOM.
func (s *Session) WaitPresent(ctx context.Context, loc browser.Locator) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.driver.WaitFor(ctx, loc, browser.Present)
}

// WaitVisible waits until loc is rendered.
func (s *Session) WaitVisible(ctx context.Context, loc browser.Locator) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.driver.WaitFor(ctx, loc, browser.Visible)
}

func (s *Session) typeInto(ctx context.Context, loc browser.Locator, text string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.driver.Type(ctx, loc, text)
}
