package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/swaglabs-e2e/internal/errs"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// PlaywrightDriver runs Chromium through playwright-go with a persistent
// profile, so the password-manager preferences can be seeded before launch.
type PlaywrightDriver struct {
	pw         *playwright.Playwright
	context    playwright.BrowserContext
	page       playwright.Page
	profileDir string
	dialogs    *dialogQueue
}

// LaunchPlaywright starts the playwright driver, launches Chromium and opens one page.
func LaunchPlaywright(ctx context.Context, o Options) (Driver, error) {
	log := obs.From(ctx).With("pkg", "browser", "backend", "playwright")

	profileDir, err := seedProfile()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "seed chromium profile", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Setup, "start playwright", err)
	}

	args := make([]string, 0, 8)
	for _, s := range LaunchSwitches(o) {
		args = append(args, s.Arg())
	}
	bctx, err := pw.Chromium.LaunchPersistentContext(profileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:   playwright.Bool(o.Headless),
		Args:       args,
		NoViewport: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Setup, "launch chromium", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Setup, "open page", err)
	}

	d := &PlaywrightDriver{
		pw:         pw,
		context:    bctx,
		page:       page,
		profileDir: profileDir,
		dialogs:    newDialogQueue(),
	}
	page.OnDialog(func(dialog playwright.Dialog) {
		d.dialogs.push(playwrightDialog{dialog})
	})

	log.Debug("browser_launched", "headless", o.Headless, "profile", profileDir)
	return d, nil
}

type playwrightDialog struct {
	d playwright.Dialog
}

func (p playwrightDialog) Message() string { return p.d.Message() }
func (p playwrightDialog) Accept() error   { return p.d.Accept() }

// seedProfile creates a throwaway user-data dir with Default/Preferences written.
func seedProfile() (string, error) {
	dir, err := os.MkdirTemp("", "swaglabs-profile-*")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "Default"), 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "Default", "Preferences"), []byte(ProfilePreferences()), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// timeoutMS converts the context deadline into a playwright timeout.
// Without a deadline playwright's own default applies.
func timeoutMS(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

func (d *PlaywrightDriver) classify(ctx context.Context, op string, loc Locator, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return errs.Wrap(errs.Timeout, fmt.Sprintf("%s %s: timed out", op, loc), err)
	}
	return timeoutErr(ctx, op, loc, err)
}

func (d *PlaywrightDriver) locate(loc Locator) playwright.Locator {
	return d.page.Locator(loc.Selector()).First()
}

func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMS(ctx),
	})
	return d.classify(ctx, "navigate to "+url, Locator{}, err)
}

func (d *PlaywrightDriver) Reload(ctx context.Context) error {
	_, err := d.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMS(ctx),
	})
	return d.classify(ctx, "reload", Locator{}, err)
}

func (d *PlaywrightDriver) Title(ctx context.Context) (string, error) {
	title, err := d.page.Title()
	if err != nil {
		return "", d.classify(ctx, "read title", Locator{}, err)
	}
	return title, nil
}

func (d *PlaywrightDriver) WaitFor(ctx context.Context, loc Locator, state State) error {
	want := playwright.WaitForSelectorStateAttached
	if state == Visible {
		want = playwright.WaitForSelectorStateVisible
	}
	err := d.locate(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   want,
		Timeout: timeoutMS(ctx),
	})
	return d.classify(ctx, "wait "+state.String(), loc, err)
}

func (d *PlaywrightDriver) Click(ctx context.Context, loc Locator) error {
	// Locator.Click already waits for the element to be attached, visible,
	// stable, enabled and receiving events.
	err := d.dialogs.clickUnlessDialog(ctx, func() error {
		return d.locate(loc).Click(playwright.LocatorClickOptions{
			Timeout: timeoutMS(ctx),
		})
	})
	return d.classify(ctx, "click", loc, err)
}

func (d *PlaywrightDriver) Type(ctx context.Context, loc Locator, text string) error {
	err := d.locate(loc).Fill(text, playwright.LocatorFillOptions{
		Timeout: timeoutMS(ctx),
	})
	return d.classify(ctx, "type into", loc, err)
}

func (d *PlaywrightDriver) Text(ctx context.Context, loc Locator) (string, error) {
	text, err := d.locate(loc).InnerText(playwright.LocatorInnerTextOptions{
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return "", d.classify(ctx, "read text", loc, err)
	}
	return text, nil
}

func (d *PlaywrightDriver) Count(ctx context.Context, loc Locator) (int, error) {
	n, err := d.page.Locator(loc.Selector()).Count()
	if err != nil {
		return 0, d.classify(ctx, "count", loc, err)
	}
	return n, nil
}

func (d *PlaywrightDriver) AcceptDialog(ctx context.Context) (string, error) {
	dialog, err := d.dialogs.next(ctx)
	if err != nil {
		return "", err
	}
	msg := dialog.Message()
	if err := dialog.Accept(); err != nil {
		return msg, fmt.Errorf("accept dialog %q: %w", msg, err)
	}
	return msg, nil
}

func (d *PlaywrightDriver) ClearCookies(ctx context.Context) error {
	return d.classify(ctx, "clear cookies", Locator{}, d.context.ClearCookies())
}

func (d *PlaywrightDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := d.context.Cookies()
	if err != nil {
		return nil, d.classify(ctx, "read cookies", Locator{}, err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

func (d *PlaywrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return nil, d.classify(ctx, "screenshot", Locator{}, err)
	}
	return png, nil
}

// Close closes the page, then the browser, then the playwright driver process.
func (d *PlaywrightDriver) Close() error {
	var errList []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close page: %w", err))
		}
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close browser: %w", err))
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errList = append(errList, fmt.Errorf("stop playwright: %w", err))
		}
	}
	if d.profileDir != "" {
		_ = os.RemoveAll(d.profileDir)
	}
	return errors.Join(errList...)
}
