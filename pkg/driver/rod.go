package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// RodProvider launches a fresh Chrome through the rod launcher for every
// session.
type RodProvider struct {
	opts   Options
	logger *zap.Logger
	closed atomic.Bool
}

func NewRodProvider(opts Options, logger *zap.Logger) *RodProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodProvider{
		opts:   opts.withDefaults(),
		logger: logger.Named("rod"),
	}
}

func (p *RodProvider) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", p.opts.WindowWidth, p.opts.WindowHeight)).
		Headless(p.opts.Headless)

	if p.opts.Maximized {
		l = l.Set("start-maximized")
	}
	if p.opts.ExecPath != "" {
		l = l.Bin(p.opts.ExecPath)
	}
	return l
}

func (p *RodProvider) Acquire(ctx context.Context) (Session, error) {
	if p.closed.Load() {
		return nil, ErrSessionUnavailable
	}

	l := p.launcher(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	var page *rod.Page
	if p.opts.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if !p.opts.Maximized {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  p.opts.WindowWidth,
			Height: p.opts.WindowHeight,
		})
		if err != nil {
			_ = browser.Close()
			l.Kill()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	p.logger.Debug("session acquired", zap.Int("pid", l.PID()), zap.Bool("stealth", p.opts.Stealth))
	return &rodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     p.opts,
		logger:   p.logger,
	}, nil
}

func (p *RodProvider) Close() error {
	p.closed.Store(true)
	return nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	logger   *zap.Logger

	once     sync.Once
	released atomic.Bool
}

func (s *rodSession) check() error {
	if s.released.Load() {
		return ErrSessionUnavailable
	}
	return nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	if err := s.check(); err != nil {
		return err
	}
	p := s.page.Context(ctx).Timeout(s.opts.Timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return p.WaitLoad()
}

func (s *rodSession) info(ctx context.Context) (*proto.TargetTargetInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	p := s.page.Context(ctx).Timeout(s.opts.Timeout)
	defer p.CancelTimeout()
	return p.Info()
}

func (s *rodSession) Title(ctx context.Context) (string, error) {
	info, err := s.info(ctx)
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	info, err := s.info(ctx)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) Find(ctx context.Context, loc Locator) (Element, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sel, err := loc.Selector()
	if err != nil {
		return nil, err
	}

	p := s.page.Context(ctx).Timeout(s.opts.FindTimeout)
	var el *rod.Element
	if loc.IsXPath() {
		el, err = p.ElementX(sel)
	} else {
		el, err = p.Element(sel)
	}
	if err != nil {
		p.CancelTimeout()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ElementNotFoundError{Locator: loc, Err: err}
		}
		return nil, err
	}
	return &rodElement{s: s, el: el.CancelTimeout()}, nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	p := s.page.Context(ctx).Timeout(s.opts.Timeout)
	defer p.CancelTimeout()
	return p.Screenshot(true, nil)
}

func (s *rodSession) Release() error {
	var err error
	s.once.Do(func() {
		s.released.Store(true)
		err = s.browser.Close()
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.logger.Debug("session released")
	})
	return err
}

// classifyRod maps rod's typed lookup failures onto ErrStaleElement before
// falling back to message matching.
func classifyRod(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, &rod.ObjectNotFoundError{}) ||
		errors.Is(err, cdp.ErrObjNotFound) ||
		errors.Is(err, cdp.ErrCtxNotFound) ||
		errors.Is(err, cdp.ErrCtxDestroyed) ||
		errors.Is(err, cdp.ErrNotAttachedToActivePage) {
		return fmt.Errorf("%w: %w", ErrStaleElement, err)
	}
	return classify(err)
}

type rodElement struct {
	s  *rodSession
	el *rod.Element
}

func (e *rodElement) bind(ctx context.Context) (*rod.Element, error) {
	if err := e.s.check(); err != nil {
		return nil, err
	}
	return e.el.Context(ctx).Timeout(e.s.opts.Timeout), nil
}

func (e *rodElement) ensureConnected(el *rod.Element) error {
	_, err := el.Eval(`function() { ` + connectedGuard + ` return true; }`)
	return classifyRod(err)
}

func (e *rodElement) Click(ctx context.Context) error {
	el, err := e.bind(ctx)
	if err != nil {
		return err
	}
	defer el.CancelTimeout()
	if err := e.ensureConnected(el); err != nil {
		return err
	}
	return classifyRod(el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	el, err := e.bind(ctx)
	if err != nil {
		return err
	}
	defer el.CancelTimeout()
	if err := e.ensureConnected(el); err != nil {
		return err
	}
	return classifyRod(el.Input(text))
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	el, err := e.bind(ctx)
	if err != nil {
		return "", err
	}
	defer el.CancelTimeout()
	if err := e.ensureConnected(el); err != nil {
		return "", err
	}
	text, err := el.Text()
	return text, classifyRod(err)
}

func (e *rodElement) CSSValue(ctx context.Context, property string) (string, error) {
	el, err := e.bind(ctx)
	if err != nil {
		return "", err
	}
	defer el.CancelTimeout()
	res, err := el.Eval(`function(p) { `+connectedGuard+` return window.getComputedStyle(this).getPropertyValue(p); }`, property)
	if err != nil {
		return "", classifyRod(err)
	}
	return res.Value.Str(), nil
}
