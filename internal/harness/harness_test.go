package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/swaglabs-e2e/internal/artifacts"
	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/browser/browsertest"
	"github.com/kuitang/swaglabs-e2e/internal/errs"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newTestHarness(d *browsertest.Driver) *Harness {
	h := New(browsertest.Factory(d), browser.DefaultOptions(), time.Second)
	h.now = func() time.Time { return fixedNow }
	return h
}

func TestHarness_AcquireRelease(t *testing.T) {
	t.Parallel()
	d := browsertest.New()
	h := newTestHarness(d)
	ctx := context.Background()

	s, err := h.Acquire(ctx, "TestLogin")
	require.NoError(t, err)
	require.Same(t, d, s.Driver().(*browsertest.Driver))
	require.Equal(t, time.Second, s.Wait())

	got, ok := h.Lookup("TestLogin")
	require.True(t, ok)
	require.Same(t, d, got.(*browsertest.Driver))

	require.NoError(t, h.Release(ctx, "TestLogin", false))
	require.Equal(t, 1, d.Closed())
	_, ok = h.Lookup("TestLogin")
	require.False(t, ok)
}

func TestHarness_DuplicateAcquire(t *testing.T) {
	t.Parallel()
	h := newTestHarness(browsertest.New())
	ctx := context.Background()

	_, err := h.Acquire(ctx, "TestLogin")
	require.NoError(t, err)
	_, err = h.Acquire(ctx, "TestLogin")
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestHarness_ConcurrentAcquireLaunchesOnce(t *testing.T) {
	t.Parallel()
	var launched atomic.Int32
	var drivers []*browsertest.Driver
	var mu sync.Mutex
	h := New(func(context.Context, browser.Options) (browser.Driver, error) {
		launched.Add(1)
		time.Sleep(50 * time.Millisecond)
		d := browsertest.New()
		mu.Lock()
		drivers = append(drivers, d)
		mu.Unlock()
		return d, nil
	}, browser.DefaultOptions(), time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = h.Acquire(ctx, "TestX")
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errs.CodeOf(err) == errs.InvalidArgument:
			rejected++
		default:
			t.Fatalf("unexpected acquire error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)
	require.Equal(t, int32(1), launched.Load())

	require.NoError(t, h.Release(ctx, "TestX", false))
	require.Len(t, drivers, 1)
	require.Equal(t, 1, drivers[0].Closed())
}

func TestHarness_NameFreedAfterFailedLaunch(t *testing.T) {
	t.Parallel()
	fail := true
	h := New(func(context.Context, browser.Options) (browser.Driver, error) {
		if fail {
			return nil, errors.New("chromium not installed")
		}
		return browsertest.New(), nil
	}, browser.DefaultOptions(), time.Second)
	ctx := context.Background()

	_, err := h.Acquire(ctx, "TestX")
	require.Error(t, err)
	fail = false
	_, err = h.Acquire(ctx, "TestX")
	require.NoError(t, err)
}

func TestHarness_FactoryFailureIsSetup(t *testing.T) {
	t.Parallel()
	h := New(func(context.Context, browser.Options) (browser.Driver, error) {
		return nil, errors.New("chromium not installed")
	}, browser.DefaultOptions(), time.Second)

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.Equal(t, errs.Setup, errs.CodeOf(err))
	require.Contains(t, err.Error(), "chromium not installed")
	require.Equal(t, 2, errs.ExitCode(err))
}

func TestHarness_ListenersRunBeforeClose(t *testing.T) {
	t.Parallel()
	d := browsertest.New()
	h := newTestHarness(d)

	var seen []string
	h.Use(ListenerFunc(func(_ context.Context, o Outcome, lookup Lookup) {
		live, ok := lookup(o.Test)
		seen = append(seen, fmt.Sprintf("%s failed=%t live=%t closed=%d", o.Test, o.Failed, ok, live.(*browsertest.Driver).Closed()))
		require.Equal(t, fixedNow, o.At)
	}))

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background(), "TestLogin", true))

	if diff := cmp.Diff([]string{"TestLogin failed=true live=true closed=0"}, seen); diff != "" {
		t.Fatalf("listener calls (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, d.Closed())
}

func TestHarness_ListenerPanicIsContained(t *testing.T) {
	t.Parallel()
	d := browsertest.New()
	h := newTestHarness(d)
	h.Use(ListenerFunc(func(context.Context, Outcome, Lookup) { panic("boom") }))

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.NoError(t, err)
	require.NotPanics(t, func() {
		require.NoError(t, h.Release(context.Background(), "TestLogin", true))
	})
	require.Equal(t, 1, d.Closed())
}

func TestScreenshotOnFailure_WritesOneFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "screenshots")
	d := browsertest.New()
	h := newTestHarness(d)
	h.Use(ScreenshotOnFailure(artifacts.Dir{Path: dir}))

	_, err := h.Acquire(context.Background(), "TestUserCanLogin/standard_user")
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background(), "TestUserCanLogin/standard_user", true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "TestUserCanLogin_standard_user_2024-03-09_14-05-07.png", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, browsertest.PNG, data)
}

func TestScreenshotOnFailure_SkipsPassingTests(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "screenshots")
	h := newTestHarness(browsertest.New())
	h.Use(ScreenshotOnFailure(artifacts.Dir{Path: dir}))

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background(), "TestLogin", false))

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err), "directory should not be created for a passing test")
}

func TestScreenshotOnFailure_NoSessionIsNoop(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "screenshots")
	h := newTestHarness(browsertest.New())
	h.Use(ScreenshotOnFailure(artifacts.Dir{Path: dir}))

	require.NoError(t, h.Release(context.Background(), "TestWithoutBrowser", true))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestScreenshotOnFailure_CaptureErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "screenshots")
	d := browsertest.New()
	d.ScreenshotErr = errors.New("target closed")
	h := newTestHarness(d)
	h.Use(ScreenshotOnFailure(artifacts.Dir{Path: dir}))

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background(), "TestLogin", true))
	require.Equal(t, 1, d.Closed())

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestScreenshotOnFailure_MirrorsToBucket(t *testing.T) {
	t.Parallel()
	bucket := artifacts.TestBucket(t, "e2e-artifacts", "screenshots")
	sink := artifacts.Mirror{Local: artifacts.Dir{Path: t.TempDir()}, Remote: bucket}
	h := newTestHarness(browsertest.New())
	h.Use(ScreenshotOnFailure(sink))

	_, err := h.Acquire(context.Background(), "TestLogin")
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background(), "TestLogin", true))

	data, err := bucket.Get(context.Background(), "TestLogin_2024-03-09_14-05-07.png")
	require.NoError(t, err)
	require.Equal(t, browsertest.PNG, data)
}

// fakeTB records Cleanup callbacks so the Driver helper can be run to
// completion with a chosen failure state.
type fakeTB struct {
	testing.TB
	name     string
	failed   bool
	cleanups []func()
	fatal    string
}

func (f *fakeTB) Helper() {}
func (f *fakeTB) Name() string { return f.name }
func (f *fakeTB) Failed() bool { return f.failed }
func (f *fakeTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }
func (f *fakeTB) Logf(string, ...any) {}
func (f *fakeTB) Fatalf(format string, args ...any) {
	f.fatal = fmt.Sprintf(format, args...)
}

func (f *fakeTB) finish() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestDriver_ReleasesWithFinalState(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "screenshots")
	d := browsertest.New()
	h := newTestHarness(d)
	h.Use(ScreenshotOnFailure(artifacts.Dir{Path: dir}))

	tb := &fakeTB{TB: t, name: "TestUserCanLogin"}
	s := Driver(tb, h)
	require.NotNil(t, s)
	require.Empty(t, tb.fatal)

	tb.failed = true
	tb.finish()

	require.Equal(t, 1, d.Closed())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "TestUserCanLogin_"))
}

func testScreenshotName_Flattened(t *rapid.T) {
	parts := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9_#]{1,10}`), 1, 4).Draw(t, "parts")
	test := strings.Join(parts, "/")
	at := time.Unix(rapid.Int64Range(0, 4102444800).Draw(t, "unix"), 0).UTC()

	name := ScreenshotName(test, at)
	if strings.ContainsAny(name, `/\`) {
		t.Fatalf("name %q still contains a separator", name)
	}
	want := strings.Join(parts, "_") + "_" + at.Format(TimestampLayout) + ".png"
	if name != want {
		t.Fatalf("ScreenshotName = %q, want %q", name, want)
	}
	stamp := strings.TrimSuffix(name[len(name)-len("2006-01-02_15-04-05.png"):], ".png")
	parsed, err := time.Parse(TimestampLayout, stamp)
	if err != nil || !parsed.Equal(at) {
		t.Fatalf("timestamp %q does not round-trip to %s: %v", stamp, at, err)
	}
}

func TestScreenshotName_Flattened(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testScreenshotName_Flattened)
}
