package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kuitang/swaglabs-e2e/internal/errs"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// RodDriver drives Chromium over the DevTools protocol with go-rod.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	dialogs  *dialogQueue
}

// LaunchRod launches Chromium with the shared switches and profile
// preferences and opens one page.
func LaunchRod(ctx context.Context, o Options) (Driver, error) {
	log := obs.From(ctx).With("pkg", "browser", "backend", "rod")

	l := launcher.New().
		Headless(o.Headless).
		Preferences(ProfilePreferences())
	for _, s := range LaunchSwitches(o) {
		if s.Value == "" {
			l = l.Set(flags.Flag(s.Name))
		} else {
			l = l.Set(flags.Flag(s.Name), s.Value)
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "launch chromium", err)
	}

	browser := rod.New().ControlURL(controlURL).NoDefaultDevice()
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, errs.Wrap(errs.Setup, "connect to chromium", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, errs.Wrap(errs.Setup, "open page", err)
	}

	d := &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		dialogs:  newDialogQueue(),
	}
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		d.dialogs.push(&rodDialog{page: page, message: e.Message})
	})()

	log.Debug("browser_launched", "headless", o.Headless, "control_url", controlURL)
	return d, nil
}

type rodDialog struct {
	page    *rod.Page
	message string
}

func (r *rodDialog) Message() string { return r.message }

func (r *rodDialog) Accept() error {
	return proto.PageHandleJavaScriptDialog{Accept: true}.Call(r.page)
}

func (d *RodDriver) element(ctx context.Context, loc Locator) (*rod.Element, error) {
	return d.page.Context(ctx).Element(loc.Selector())
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return timeoutErr(ctx, "navigate to "+url, Locator{}, err)
	}
	return timeoutErr(ctx, "load "+url, Locator{}, p.WaitLoad())
}

func (d *RodDriver) Reload(ctx context.Context) error {
	p := d.page.Context(ctx)
	if err := p.Reload(); err != nil {
		return timeoutErr(ctx, "reload", Locator{}, err)
	}
	return timeoutErr(ctx, "reload", Locator{}, p.WaitLoad())
}

func (d *RodDriver) Title(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", timeoutErr(ctx, "read title", Locator{}, err)
	}
	return info.Title, nil
}

func (d *RodDriver) WaitFor(ctx context.Context, loc Locator, state State) error {
	el, err := d.element(ctx, loc)
	if err != nil {
		return timeoutErr(ctx, "wait "+state.String(), loc, err)
	}
	if state == Visible {
		if err := el.WaitVisible(); err != nil {
			return timeoutErr(ctx, "wait visible", loc, err)
		}
	}
	return nil
}

func (d *RodDriver) Click(ctx context.Context, loc Locator) error {
	el, err := d.element(ctx, loc)
	if err != nil {
		return timeoutErr(ctx, "click", loc, err)
	}
	if err := el.WaitEnabled(); err != nil {
		return timeoutErr(ctx, "click", loc, err)
	}
	err = d.dialogs.clickUnlessDialog(ctx, func() error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
	return timeoutErr(ctx, "click", loc, err)
}

func (d *RodDriver) Type(ctx context.Context, loc Locator, text string) error {
	el, err := d.element(ctx, loc)
	if err != nil {
		return timeoutErr(ctx, "type into", loc, err)
	}
	if err := el.SelectAllText(); err != nil {
		return timeoutErr(ctx, "type into", loc, err)
	}
	if text == "" {
		return timeoutErr(ctx, "type into", loc, el.Type(input.Backspace))
	}
	return timeoutErr(ctx, "type into", loc, el.Input(text))
}

func (d *RodDriver) Text(ctx context.Context, loc Locator) (string, error) {
	el, err := d.element(ctx, loc)
	if err != nil {
		return "", timeoutErr(ctx, "read text", loc, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", timeoutErr(ctx, "read text", loc, err)
	}
	return text, nil
}

func (d *RodDriver) Count(ctx context.Context, loc Locator) (int, error) {
	els, err := d.page.Context(ctx).Elements(loc.Selector())
	if err != nil {
		return 0, timeoutErr(ctx, "count", loc, err)
	}
	return len(els), nil
}

func (d *RodDriver) AcceptDialog(ctx context.Context) (string, error) {
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

func (d *RodDriver) ClearCookies(ctx context.Context) error {
	return timeoutErr(ctx, "clear cookies", Locator{}, d.browser.Context(ctx).SetCookies(nil))
}

func (d *RodDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := d.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, timeoutErr(ctx, "read cookies", Locator{}, err)
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

func (d *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, timeoutErr(ctx, "screenshot", Locator{}, err)
	}
	return png, nil
}

// Close closes the page and the browser, then kills the process and removes
// its user-data dir.
func (d *RodDriver) Close() error {
	var errList []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close page: %w", err))
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close browser: %w", err))
		}
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return errors.Join(errList...)
}
