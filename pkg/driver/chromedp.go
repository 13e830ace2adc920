package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpProvider starts one Chrome process per acquired session from a
// shared exec allocator.
type ChromedpProvider struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	closed      bool
}

func NewChromedpProvider(opts Options, logger *zap.Logger) *ChromedpProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpProvider{
		opts:   opts.withDefaults(),
		logger: logger.Named("chromedp"),
	}
}

func (p *ChromedpProvider) allocator() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrSessionUnavailable
	}
	if p.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", p.opts.Headless),
			chromedp.Flag("disable-gpu", p.opts.Headless),
			chromedp.Flag("no-sandbox", true),
			chromedp.WindowSize(p.opts.WindowWidth, p.opts.WindowHeight),
		)
		if p.opts.Maximized {
			opts = append(opts, chromedp.Flag("start-maximized", true))
		}
		if p.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(p.opts.ExecPath))
		}
		p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return p.allocCtx, nil
}

func (p *ChromedpProvider) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocCtx, err := p.allocator()
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(p.logger.Sugar().Errorf))
	s := &chromedpSession{
		ctx:    tabCtx,
		cancel: cancel,
		opts:   p.opts,
		logger: p.logger,
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run on a fresh context launches the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	p.logger.Debug("session acquired", zap.Bool("headless", p.opts.Headless))
	return s, nil
}

func (p *ChromedpProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	return nil
}

type chromedpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	logger *zap.Logger

	once     sync.Once
	released atomic.Bool
}

func (s *chromedpSession) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if ev.Type != runtime.APITypeError {
			return
		}
		var message string
		if len(ev.Args) > 0 && ev.Args[0].Value != nil {
			message = string(ev.Args[0].Value)
		}
		s.logger.Warn("console error", zap.String("message", message))
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails != nil {
			s.logger.Warn("uncaught exception", zap.String("text", ev.ExceptionDetails.Text))
		}
	}
}

// run executes actions on the session's tab, bounded by timeout and by the
// caller's ctx.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.released.Load() {
		return ErrSessionUnavailable
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.Timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.opts.Timeout, chromedp.Title(&title))
	return title, err
}

func (s *chromedpSession) URL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, s.opts.Timeout, chromedp.Location(&url))
	return url, err
}

func (s *chromedpSession) Find(ctx context.Context, loc Locator) (Element, error) {
	sel, err := loc.Selector()
	if err != nil {
		return nil, err
	}
	var by chromedp.QueryOption = chromedp.ByQuery
	if loc.IsXPath() {
		by = chromedp.BySearch
	}

	var nodes []*cdp.Node
	err = s.run(ctx, s.opts.FindTimeout, chromedp.Nodes(sel, &nodes, by))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ElementNotFoundError{Locator: loc, Err: err}
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &ElementNotFoundError{Locator: loc}
	}
	return &chromedpElement{s: s, node: nodes[0]}, nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.opts.Timeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromedpSession) Release() error {
	var err error
	s.once.Do(func() {
		s.released.Store(true)
		err = chromedp.Cancel(s.ctx)
		s.cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.logger.Debug("session released")
	})
	return err
}

// connectedGuard throws the stale marker when the node left the document.
const connectedGuard = `if (!this.isConnected) { throw new Error("stale element reference: node is detached from the document"); }`

type chromedpElement struct {
	s    *chromedpSession
	node *cdp.Node
}

// call resolves the node by its backend id and invokes fn with this bound to
// it. A node from a previous document no longer resolves.
func (e *chromedpElement) call(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	err := e.s.run(ctx, e.s.opts.Timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	}))
	return classify(err)
}

func (e *chromedpElement) Click(ctx context.Context) error {
	var ok bool
	if err := e.call(ctx, `function() { `+connectedGuard+` this.scrollIntoView({block: "center"}); return true; }`, &ok); err != nil {
		return err
	}
	return classify(e.s.run(ctx, e.s.opts.Timeout, chromedp.MouseClickNode(e.node)))
}

func (e *chromedpElement) SendKeys(ctx context.Context, text string) error {
	var ok bool
	if err := e.call(ctx, `function() { `+connectedGuard+` this.focus(); return true; }`, &ok); err != nil {
		return err
	}
	return classify(e.s.run(ctx, e.s.opts.Timeout, chromedp.KeyEvent(text)))
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, `function() { `+connectedGuard+` return this.innerText || this.textContent || ""; }`, &text)
	return text, err
}

func (e *chromedpElement) CSSValue(ctx context.Context, property string) (string, error) {
	var value string
	err := e.call(ctx, `function(p) { `+connectedGuard+` return window.getComputedStyle(this).getPropertyValue(p); }`, &value, property)
	return value, err
}
