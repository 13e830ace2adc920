// Package driver owns browser sessions: it starts them, hands out session
// handles, and guarantees they are released.
//
// Three backends implement Provider: chromedp (the default), go-rod and
// playwright-go. Everything above this package sees only Session and Element.
package driver

//go:generate mockgen -destination=mocks/mock_driver.go -package=mocks . Provider,Session,Element

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider creates browser sessions. Close shuts down whatever the provider
// keeps alive between sessions (allocators, driver processes).
type Provider interface {
	Acquire(ctx context.Context) (Session, error)
	Close() error
}

// Session is a live browser session. Release must be called once per
// acquired session; after it every operation returns ErrSessionUnavailable.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Find(ctx context.Context, loc Locator) (Element, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Release() error
}

// Element is a reference to a rendered node. It goes stale when the page
// navigates or the node is removed.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	CSSValue(ctx context.Context, property string) (string, error)
}

type Scope string

const (
	ScopeTest    Scope = "test"
	ScopeSession Scope = "session"
)

const (
	BrowserChromedp   = "chromedp"
	BrowserRod        = "rod"
	BrowserPlaywright = "playwright"
)

// Options configures every backend. Zero values fall back to defaults.
type Options struct {
	Browser           string
	PlaywrightBrowser string
	Headless          bool
	Maximized         bool
	WindowWidth       int
	WindowHeight      int
	Stealth           bool
	Timeout           time.Duration
	FindTimeout       time.Duration
	ExecPath          string
}

func (o Options) withDefaults() Options {
	if o.Browser == "" {
		o.Browser = BrowserChromedp
	}
	if o.PlaywrightBrowser == "" {
		o.PlaywrightBrowser = "chromium"
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = 1920
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = 1080
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.FindTimeout <= 0 {
		o.FindTimeout = 10 * time.Second
	}
	return o
}

// NewProvider returns the backend named by opts.Browser.
func NewProvider(opts Options, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	switch opts.Browser {
	case BrowserChromedp:
		return NewChromedpProvider(opts, logger), nil
	case BrowserRod:
		return NewRodProvider(opts, logger), nil
	case BrowserPlaywright:
		return NewPlaywrightProvider(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser %q (want %s, %s or %s)",
			opts.Browser, BrowserChromedp, BrowserRod, BrowserPlaywright)
	}
}

// With acquires a session, runs fn and releases the session on every exit
// path, including a panic inside fn.
func With(ctx context.Context, p Provider, fn func(Session) error) (err error) {
	if p == nil {
		return fmt.Errorf("acquire session: %w", ErrMissingCollaborator)
	}
	s, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer func() {
		if rerr := s.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("release session: %w", rerr)
		}
	}()
	return fn(s)
}
