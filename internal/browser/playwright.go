package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// Playwright launches chromium through playwright-go.
type Playwright struct {
	// SkipInstall avoids the driver/browser download check on every launch.
	SkipInstall bool
	Logger      logrus.FieldLogger
}

// Launch installs chromium if needed, starts the playwright driver and a
// headless (or headed) chromium instance.
func (p *Playwright) Launch(opts Options) (Session, error) {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("scope", "browser")

	if !p.SkipInstall {
		log.Info("installing playwright browsers")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	args := append([]string{"--disable-dev-shm-usage"}, opts.Args...)
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.WithField("headless", opts.Headless).Info("browser launched")

	return &pwSession{pw: pw, browser: b, viewport: opts.Viewport}, nil
}

type pwSession struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	viewport Viewport
}

func (s *pwSession) NewPage() (Page, error) {
	var pageOpts playwright.BrowserNewPageOptions
	if s.viewport.Width > 0 && s.viewport.Height > 0 {
		pageOpts.Viewport = &playwright.Size{Width: s.viewport.Width, Height: s.viewport.Height}
	}
	page, err := s.browser.NewPage(pageOpts)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &pwPage{page: page}, nil
}

// Close closes the browser, then stops the driver process.
func (s *pwSession) Close() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(url string, timeout time.Duration) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return wrapErr(fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

func (p *pwPage) Click(l Locator, timeout time.Duration) error {
	if err := p.locator(l).Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return wrapErr("click "+l.String(), err)
	}
	return nil
}

func (p *pwPage) WaitVisible(l Locator, timeout time.Duration) error {
	if err := p.locator(l).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	}); err != nil {
		return wrapErr("wait for "+l.String(), err)
	}
	return nil
}

func (p *pwPage) WaitForCondition(expr string, timeout time.Duration) error {
	if _, err := p.page.WaitForFunction(expr, nil, playwright.PageWaitForFunctionOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return wrapErr("wait for condition", err)
	}
	return nil
}

func (p *pwPage) Sleep(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *pwPage) Screenshot(fullPage bool) ([]byte, error) {
	b, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return b, nil
}

func (p *pwPage) OnConsole(obs ConsoleObserver) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		obs(ConsoleMessage{Type: msg.Type(), Text: msg.Text()})
	})
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) locator(l Locator) playwright.Locator {
	if l.IsLabel() {
		return p.page.GetByLabel(l.label, labelOptions(l))
	}
	return p.page.GetByRole(playwright.AriaRole(l.role), roleOptions(l))
}

func roleOptions(l Locator) playwright.PageGetByRoleOptions {
	opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(l.exact)}
	if l.name != "" {
		opts.Name = l.name
	}
	return opts
}

func labelOptions(l Locator) playwright.PageGetByLabelOptions {
	return playwright.PageGetByLabelOptions{Exact: playwright.Bool(l.exact)}
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d) / float64(time.Millisecond))
}

// wrapErr tags playwright timeouts with ErrTimeout so callers need not import
// playwright to classify failures.
func wrapErr(action string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", action, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
