// Package harness owns browser session lifecycles for the suite.
//
// A Harness launches one browser per test name and tears it down on Release.
// Listeners registered with Use observe every Release before the browser is
// closed; each receives an explicit Lookup from test name to live session,
// which is how the failure screenshot listener reaches the right browser.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/config"
	"github.com/kuitang/swaglabs-e2e/internal/errs"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
	"github.com/kuitang/swaglabs-e2e/internal/pages"
)

// Outcome is what a listener learns about a finished test.
type Outcome struct {
	Test   string
	Failed bool
	At     time.Time
}

// Lookup resolves a test name to the browser session it acquired.
type Lookup func(test string) (browser.Driver, bool)

// Listener observes test completion. It must not fail the test.
type Listener interface {
	AfterCall(ctx context.Context, o Outcome, lookup Lookup)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, o Outcome, lookup Lookup)

func (f ListenerFunc) AfterCall(ctx context.Context, o Outcome, lookup Lookup) {
	f(ctx, o, lookup)
}

// Harness creates and destroys browser sessions keyed by test name.
type Harness struct {
	factory browser.Factory
	opts    browser.Options
	wait    time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	sessions  map[string]browser.Driver
	launching map[string]bool
	listeners []Listener
}

// New returns a Harness that launches sessions with factory.
func New(factory browser.Factory, opts browser.Options, wait time.Duration) *Harness {
	return &Harness{
		factory:  factory,
		opts:     opts,
		wait:     wait,
		now:      time.Now,
		log:      obs.Pkg("harness"),
		sessions:  make(map[string]browser.Driver),
		launching: make(map[string]bool),
	}
}

// FromConfig builds a Harness for the configured backend and window.
func FromConfig(cfg *config.Config) (*Harness, error) {
	factory, err := browser.FactoryFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return New(factory, optionsFor(cfg), cfg.WaitTimeout), nil
}

func optionsFor(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:     cfg.Headless,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
	}
}

// Use registers a listener for every subsequent Release.
func (h *Harness) Use(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Acquire launches a browser for test and returns a page session bound to it.
func (h *Harness) Acquire(ctx context.Context, test string) (*pages.Session, error) {
	h.mu.Lock()
	_, taken := h.sessions[test]
	if taken || h.launching[test] {
		h.mu.Unlock()
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("test %q already holds a browser session", test))
	}
	// The name stays reserved while the browser starts.
	h.launching[test] = true
	h.mu.Unlock()

	d, err := h.factory(obs.WithTest(ctx, test), h.opts)

	h.mu.Lock()
	delete(h.launching, test)
	if err == nil {
		h.sessions[test] = d
	}
	h.mu.Unlock()
	if err != nil {
		if errs.CodeOf(err) == errs.Internal {
			err = errs.Wrap(errs.Setup, "launch browser", err)
		}
		return nil, err
	}

	h.log.Debug("session_acquired", "test", test)
	return pages.NewSession(d, h.wait), nil
}

// Lookup returns the live session of test, if any.
func (h *Harness) Lookup(test string) (browser.Driver, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.sessions[test]
	return d, ok
}

// Release notifies listeners of the outcome, then closes test's browser.
// Releasing a test that holds no session still notifies listeners.
func (h *Harness) Release(ctx context.Context, test string, failed bool) error {
	ctx = obs.WithTest(ctx, test)
	outcome := Outcome{Test: test, Failed: failed, At: h.now()}

	h.mu.Lock()
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()
	for _, l := range listeners {
		h.notify(ctx, l, outcome)
	}

	h.mu.Lock()
	d, ok := h.sessions[test]
	delete(h.sessions, test)
	h.mu.Unlock()
	if !ok {
		return nil
	}

	if err := d.Close(); err != nil {
		h.log.Warn("session_close_failed", "test", test, "error", err)
		return fmt.Errorf("close browser for %s: %w", test, err)
	}
	h.log.Debug("session_released", "test", test, "failed", failed)
	return nil
}

func (h *Harness) notify(ctx context.Context, l Listener, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("listener_panic", "test", o.Test, "panic", fmt.Sprint(r))
		}
	}()
	l.AfterCall(ctx, o, h.Lookup)
}

// Driver acquires a session for t and releases it when t finishes, passing
// the test's final pass/fail state to the listeners.
func Driver(t testing.TB, h *Harness) *pages.Session {
	t.Helper()
	ctx := obs.WithTest(context.Background(), t.Name())
	s, err := h.Acquire(ctx, t.Name())
	if err != nil {
		t.Fatalf("acquire browser: %v", err)
	}
	t.Cleanup(func() {
		if err := h.Release(ctx, t.Name(), t.Failed()); err != nil {
			t.Logf("release browser: %v", err)
		}
	})
	return s
}
