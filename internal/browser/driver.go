// Package browser drives a single Chromium session for the page objects.
//
// Page objects depend on the Driver interface only. Two backends implement it:
// playwright-go (the default) and go-rod over the DevTools protocol. Both
// launch Chromium with the same policy: no password-save bubble, no password
// leak detection, no notification prompts, and a maximized window.
//
// Every blocking method takes a context; its deadline is the wait window.
// A wait that runs out is reported as an errs.Timeout error.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kuitang/swaglabs-e2e/internal/errs"
)

// State is the element condition a wait blocks on.
type State int

const (
	// Present means attached to the DOM.
	Present State = iota
	// Visible means attached and rendered with a non-empty box.
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "present"
}

// Cookie is a browser cookie as reported by the backend.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Driver is one browser session with one active page.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	// WaitFor blocks until the first element matching loc reaches state.
	WaitFor(ctx context.Context, loc Locator, state State) error
	// Click waits for the element to be clickable, then clicks it. If the
	// click opens a native dialog, Click returns once the dialog is showing.
	Click(ctx context.Context, loc Locator) error
	// Type replaces the value of an input.
	Type(ctx context.Context, loc Locator, text string) error
	Text(ctx context.Context, loc Locator) (string, error)
	// Count returns the number of matching elements without waiting.
	Count(ctx context.Context, loc Locator) (int, error)
	// AcceptDialog waits for a native dialog, accepts it and returns its message.
	AcceptDialog(ctx context.Context) (string, error)
	ClearCookies(ctx context.Context) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Close closes the page and terminates the browser.
	Close() error
}

// Options configures how a backend launches Chromium.
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// DefaultOptions returns a headless 1920x1080 session.
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Switch is one Chromium command-line switch.
type Switch struct {
	Name  string
	Value string
}

// Arg renders the switch for an argv list.
func (s Switch) Arg() string {
	if s.Value == "" {
		return "--" + s.Name
	}
	return "--" + s.Name + "=" + s.Value
}

// LaunchSwitches returns the Chromium switches both backends apply.
func LaunchSwitches(o Options) []Switch {
	return []Switch{
		{Name: "disable-save-password-bubble"},
		{Name: "disable-features", Value: "PasswordLeakDetection"},
		{Name: "disable-notifications"},
		{Name: "start-maximized"},
		{Name: "window-size", Value: fmt.Sprintf("%d,%d", o.WindowWidth, o.WindowHeight)},
	}
}

// ProfilePreferences is the Chromium profile "Preferences" document that turns
// off the credential service and the password manager.
func ProfilePreferences() string {
	prefs := map[string]any{
		"credentials_enable_service": false,
		"profile": map[string]any{
			"password_manager_enabled": false,
		},
	}
	b, err := json.Marshal(prefs)
	if err != nil {
		panic(fmt.Sprintf("marshal chromium preferences: %v", err))
	}
	return string(b)
}

// Factory launches a new Driver.
type Factory func(ctx context.Context, o Options) (Driver, error)

// FactoryFor returns the launcher for a backend name.
func FactoryFor(name string) (Factory, error) {
	switch name {
	case "", "playwright":
		return LaunchPlaywright, nil
	case "rod":
		return LaunchRod, nil
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser driver %q", name))
	}
}

// timeoutErr classifies a backend error for an operation on loc. A nil err
// stays nil.
func timeoutErr(ctx context.Context, op string, loc Locator, err error) error {
	if err == nil {
		return nil
	}
	target := op
	if loc.Value != "" {
		target = op + " " + loc.String()
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.Timeout, target+": timed out", err)
	}
	return fmt.Errorf("%s: %w", target, err)
}

// pendingDialog is a native dialog that has opened and not been handled yet.
type pendingDialog interface {
	Message() string
	Accept() error
}

// dialogQueue buffers dialogs reported by a backend event listener until
// AcceptDialog consumes them.
type dialogQueue struct {
	pending chan pendingDialog
	opened  chan struct{}
}

func newDialogQueue() *dialogQueue {
	return &dialogQueue{
		pending: make(chan pendingDialog, 8),
		opened:  make(chan struct{}, 1),
	}
}

func (q *dialogQueue) push(d pendingDialog) {
	select {
	case q.pending <- d:
	default:
		// A page that stacks this many dialogs is stuck anyway; accept to unblock it.
		_ = d.Accept()
		return
	}
	select {
	case q.opened <- struct{}{}:
	default:
	}
}

func (q *dialogQueue) next(ctx context.Context) (pendingDialog, error) {
	select {
	case d := <-q.pending:
		return d, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Timeout, "accept dialog: no dialog appeared", ctx.Err())
	}
}

// clickUnlessDialog runs click and returns when it finishes or when a native
// dialog opens, whichever comes first. A click whose handler opens a dialog
// only completes after the dialog is handled, so waiting for it would
// deadlock against a later AcceptDialog.
func (q *dialogQueue) clickUnlessDialog(ctx context.Context, click func() error) error {
	select {
	case <-q.opened:
	default:
	}

	done := make(chan error, 1)
	go func() { done <- click() }()

	select {
	case err := <-done:
		return err
	case <-q.opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
