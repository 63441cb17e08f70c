// Package browsertest provides a scripted in-memory browser.Driver for unit
// tests of page objects and the harness.
//
// The fake keeps a flat element table keyed by CSS selector. Tests seed it
// directly (Show, Hide, Remove) or react to navigation and clicks with hooks,
// which is enough to model the handful of screens the page objects touch.
package browsertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/errs"
)

// PNG is the payload returned by Screenshot: the 8-byte PNG signature.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const pollInterval = 2 * time.Millisecond

type element struct {
	visible bool
	text    string
	value   string
}

// Driver is a fake browser session. All methods are safe for concurrent use.
type Driver struct {
	mu         sync.Mutex
	url        string
	title      string
	elements   map[string]*element
	cookies    map[string]browser.Cookie
	dialogs    []string
	actions    []string
	onNavigate func(d *Driver, url string)
	onClick    map[string]func(d *Driver)
	closed     int

	// ScreenshotErr, when set, is returned by Screenshot.
	ScreenshotErr error
}

var _ browser.Driver = (*Driver)(nil)

// New returns an empty session on about:blank.
func New() *Driver {
	return &Driver{
		url:      "about:blank",
		elements: make(map[string]*element),
		cookies:  make(map[string]browser.Cookie),
		onClick:  make(map[string]func(d *Driver)),
	}
}

// Factory returns a browser.Factory that hands out d.
func Factory(d *Driver) browser.Factory {
	return func(context.Context, browser.Options) (browser.Driver, error) {
		return d, nil
	}
}

// OnNavigate registers fn to run on every Navigate and Reload. It replaces any
// previous hook.
func (d *Driver) OnNavigate(fn func(d *Driver, url string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNavigate = fn
}

// OnClick registers fn to run after a successful click on loc.
func (d *Driver) OnClick(loc browser.Locator, fn func(d *Driver)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[loc.Selector()] = fn
}

// SetTitle sets the document title.
func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// Show attaches loc as a visible element with the given text.
func (d *Driver) Show(loc browser.Locator, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[loc.Selector()] = &element{visible: true, text: text}
}

// Hide attaches loc but leaves it invisible.
func (d *Driver) Hide(loc browser.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[loc.Selector()] = &element{}
}

// Remove detaches loc.
func (d *Driver) Remove(loc browser.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, loc.Selector())
}

// Clear detaches every element.
func (d *Driver) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = make(map[string]*element)
}

// SetCookie stores a cookie.
func (d *Driver) SetCookie(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies[name] = browser.Cookie{Name: name, Value: value, Path: "/"}
}

// OpenDialog queues a native dialog with msg.
func (d *Driver) OpenDialog(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialogs = append(d.dialogs, msg)
}

// Value returns what was last typed into loc.
func (d *Driver) Value(loc browser.Locator) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[loc.Selector()]; ok {
		return el.value
	}
	return ""
}

// URL returns the current location.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Actions returns the recorded calls in order, e.g. "click #login-button".
func (d *Driver) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

// Closed reports how many times Close was called.
func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) record(format string, args ...any) {
	d.actions = append(d.actions, fmt.Sprintf(format, args...))
}

// waitUntil polls cond under the lock until it holds or ctx is done.
func (d *Driver) waitUntil(ctx context.Context, what string, cond func() bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		d.mu.Lock()
		ok := cond()
		d.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.Timeout, what+": timed out", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.record("navigate %s", url)
	d.url = url
	hook := d.onNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, url)
	}
	return ctx.Err()
}

func (d *Driver) Reload(ctx context.Context) error {
	d.mu.Lock()
	d.record("reload")
	url := d.url
	hook := d.onNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, url)
	}
	return ctx.Err()
}

func (d *Driver) Title(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) WaitFor(ctx context.Context, loc browser.Locator, state browser.State) error {
	sel := loc.Selector()
	return d.waitUntil(ctx, "wait "+state.String()+" "+loc.String(), func() bool {
		el, ok := d.elements[sel]
		return ok && (state == browser.Present || el.visible)
	})
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	sel := loc.Selector()
	if err := d.waitUntil(ctx, "click "+loc.String(), func() bool {
		el, ok := d.elements[sel]
		return ok && el.visible
	}); err != nil {
		return err
	}
	d.mu.Lock()
	d.record("click %s", sel)
	hook := d.onClick[sel]
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) Type(ctx context.Context, loc browser.Locator, text string) error {
	sel := loc.Selector()
	if err := d.waitUntil(ctx, "type into "+loc.String(), func() bool {
		_, ok := d.elements[sel]
		return ok
	}); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("type %s %s", sel, text)
	d.elements[sel].value = text
	return nil
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (string, error) {
	sel := loc.Selector()
	if err := d.waitUntil(ctx, "read text "+loc.String(), func() bool {
		_, ok := d.elements[sel]
		return ok
	}); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements[sel].text, nil
}

func (d *Driver) Count(_ context.Context, loc browser.Locator) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.elements[loc.Selector()]; ok {
		return 1, nil
	}
	return 0, nil
}

func (d *Driver) AcceptDialog(ctx context.Context) (string, error) {
	var msg string
	err := d.waitUntil(ctx, "accept dialog", func() bool {
		if len(d.dialogs) == 0 {
			return false
		}
		msg = d.dialogs[0]
		d.dialogs = d.dialogs[1:]
		return true
	})
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.record("accept dialog %s", msg)
	d.mu.Unlock()
	return msg, nil
}

func (d *Driver) ClearCookies(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("clear cookies")
	d.cookies = make(map[string]browser.Cookie)
	return nil
}

func (d *Driver) Cookies(context.Context) ([]browser.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]browser.Cookie, 0, len(d.cookies))
	for _, c := range d.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("screenshot")
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	return append([]byte(nil), PNG...), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close")
	d.closed++
	return nil
}
