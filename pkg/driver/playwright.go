package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// PlaywrightProvider starts the Playwright driver once and launches one
// browser per session. The browser binaries must already be installed
// (go run github.com/playwright-community/playwright-go/cmd/playwright install).
type PlaywrightProvider struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	pw     *playwright.Playwright
	closed bool
}

func NewPlaywrightProvider(opts Options, logger *zap.Logger) *PlaywrightProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaywrightProvider{
		opts:   opts.withDefaults(),
		logger: logger.Named("playwright"),
	}
}

func (p *PlaywrightProvider) start() (*playwright.Playwright, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrSessionUnavailable
	}
	if p.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		p.pw = pw
	}
	return p.pw, nil
}

func (p *PlaywrightProvider) browserType(pw *playwright.Playwright) (playwright.BrowserType, error) {
	switch p.opts.PlaywrightBrowser {
	case "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unknown playwright browser %q", p.opts.PlaywrightBrowser)
	}
}

func (p *PlaywrightProvider) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := p.start()
	if err != nil {
		return nil, err
	}
	bt, err := p.browserType(pw)
	if err != nil {
		return nil, err
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.opts.Headless),
	}
	if p.opts.ExecPath != "" {
		launch.ExecutablePath = playwright.String(p.opts.ExecPath)
	}
	if p.opts.Maximized && p.opts.PlaywrightBrowser == "chromium" {
		launch.Args = []string{"--start-maximized"}
	}
	browser, err := bt.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", p.opts.PlaywrightBrowser, err)
	}

	pageOpts := playwright.BrowserNewPageOptions{}
	if p.opts.Maximized {
		pageOpts.NoViewport = playwright.Bool(true)
	} else {
		pageOpts.Viewport = &playwright.Size{Width: p.opts.WindowWidth, Height: p.opts.WindowHeight}
	}
	page, err := browser.NewPage(pageOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	page.SetDefaultTimeout(float64(p.opts.Timeout.Milliseconds()))

	s := &playwrightSession{
		browser: browser,
		page:    page,
		opts:    p.opts,
		logger:  p.logger,
	}
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			s.logger.Warn("console error", zap.String("message", msg.Text()))
		}
	})
	p.logger.Debug("session acquired", zap.String("browser", p.opts.PlaywrightBrowser))
	return s, nil
}

func (p *PlaywrightProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.pw == nil {
		return nil
	}
	err := p.pw.Stop()
	p.pw = nil
	return err
}

type playwrightSession struct {
	browser playwright.Browser
	page    playwright.Page
	opts    Options
	logger  *zap.Logger

	once     sync.Once
	released atomic.Bool
}

// check guards every call: playwright-go has no context support, so the
// caller's ctx is only consulted before the call starts.
func (s *playwrightSession) check(ctx context.Context) error {
	if s.released.Load() {
		return ErrSessionUnavailable
	}
	return ctx.Err()
}

// classifyPlaywright maps a closed page or browser onto ErrSessionUnavailable
// and detached handles onto ErrStaleElement.
func classifyPlaywright(err error) error {
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return classify(err)
}

// findError reports a wait that timed out as the element not being found.
func findError(loc Locator, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return &ElementNotFoundError{Locator: loc, Err: err}
	}
	return classifyPlaywright(err)
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.page.Goto(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, classifyPlaywright(err))
	}
	return nil
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	title, err := s.page.Title()
	return title, classifyPlaywright(err)
}

func (s *playwrightSession) URL(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *playwrightSession) Find(ctx context.Context, loc Locator) (Element, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	sel, err := loc.Selector()
	if err != nil {
		return nil, err
	}
	if loc.IsXPath() {
		sel = "xpath=" + sel
	}

	l := s.page.Locator(sel).First()
	err = l.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(s.opts.FindTimeout.Milliseconds())),
	})
	if err != nil {
		return nil, findError(loc, err)
	}
	h, err := l.ElementHandle()
	if err != nil {
		return nil, classifyPlaywright(err)
	}
	return &playwrightElement{s: s, h: h}, nil
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	buf, err := s.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", classifyPlaywright(err))
	}
	return buf, nil
}

func (s *playwrightSession) Release() error {
	var err error
	s.once.Do(func() {
		s.released.Store(true)
		err = s.browser.Close()
		s.logger.Debug("session released")
	})
	return err
}

type playwrightElement struct {
	s *playwrightSession
	h playwright.ElementHandle
}

func (e *playwrightElement) ensureConnected() error {
	_, err := e.h.Evaluate(`el => { if (!el.isConnected) { throw new Error("stale element reference: node is detached from the document"); } return true; }`)
	return classifyPlaywright(err)
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := e.s.check(ctx); err != nil {
		return err
	}
	if err := e.ensureConnected(); err != nil {
		return err
	}
	return classifyPlaywright(e.h.Click())
}

func (e *playwrightElement) SendKeys(ctx context.Context, text string) error {
	if err := e.s.check(ctx); err != nil {
		return err
	}
	if err := e.ensureConnected(); err != nil {
		return err
	}
	return classifyPlaywright(e.h.Type(text))
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := e.s.check(ctx); err != nil {
		return "", err
	}
	if err := e.ensureConnected(); err != nil {
		return "", err
	}
	text, err := e.h.TextContent()
	return text, classifyPlaywright(err)
}

func (e *playwrightElement) CSSValue(ctx context.Context, property string) (string, error) {
	if err := e.s.check(ctx); err != nil {
		return "", err
	}
	v, err := e.h.Evaluate(`(el, p) => { if (!el.isConnected) { throw new Error("stale element reference: node is detached from the document"); } return window.getComputedStyle(el).getPropertyValue(p); }`, property)
	if err != nil {
		return "", classifyPlaywright(err)
	}
	value, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("css %s: unexpected result type %T", property, v)
	}
	return value, nil
}
