// Package fixture wires configuration, a driver provider, the browser
// utilities and the page objects together for use inside go tests.
//
// A suite usually builds one Fixture in TestMain and closes it after m.Run:
//
//	func TestMain(m *testing.M) {
//		fx, err := fixture.Load()
//		if err != nil {
//			log.Fatal(err)
//		}
//		code := m.Run()
//		fx.Close()
//		os.Exit(code)
//	}
//
// Each test then asks for what it needs and the fixture releases it when the
// test ends.
package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/config"
	"github.com/kidandcat/pomkit/pkg/driver"
	"github.com/kidandcat/pomkit/pkg/pages"
)

type Fixture struct {
	config   *config.Config
	provider driver.Provider
	logger   *zap.Logger

	mu                sync.Mutex
	screenshotCounter map[string]int
	closed            bool
}

// New builds a fixture around p. With session scope p is wrapped in a
// driver.Shared so every test gets the same browser.
func New(cfg *config.Config, p driver.Provider, logger *zap.Logger) (*Fixture, error) {
	if p == nil {
		return nil, fmt.Errorf("fixture provider: %w", driver.ErrMissingCollaborator)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Scope == driver.ScopeSession {
		p = driver.NewShared(p, logger)
	}

	return &Fixture{
		config:            cfg,
		provider:          p,
		logger:            logger,
		screenshotCounter: make(map[string]int),
	}, nil
}

// FromConfig builds the logger and the provider cfg asks for.
func FromConfig(cfg *config.Config) (*Fixture, error) {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	p, err := driver.NewProvider(cfg.DriverOptions(), logger)
	if err != nil {
		return nil, err
	}
	return New(cfg, p, logger)
}

// Load is FromConfig with the configuration resolved by config.Load.
func Load() (*Fixture, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return FromConfig(cfg)
}

// NewLogger returns a development logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

func (f *Fixture) Config() *config.Config {
	return f.config
}

func (f *Fixture) Logger() *zap.Logger {
	return f.logger
}

func (f *Fixture) Credentials() config.Credentials {
	return f.config.Credentials
}

// Parallel marks t as parallel when every test gets its own browser. Tests
// sharing one session stay serial since page state would leak between them.
func (f *Fixture) Parallel(t interface{ Parallel() }) {
	if f.config.Scope == driver.ScopeTest {
		t.Parallel()
	}
}

// Session acquires a browser session for tb. When tb ends the session is
// released, after a screenshot is saved if tb failed.
func (f *Fixture) Session(tb testing.TB) driver.Session {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), f.config.Timeout)
	defer cancel()

	s, err := f.provider.Acquire(ctx)
	if err != nil {
		tb.Fatalf("acquire browser session: %v", err)
		return nil
	}

	tb.Cleanup(func() {
		if tb.Failed() {
			f.screenshot(tb, s)
		}
		if err := s.Release(); err != nil {
			tb.Errorf("release browser session: %v", err)
		}
	})
	return s
}

// Utils returns the browser utilities for s with the configured default
// style properties.
func (f *Fixture) Utils(tb testing.TB, s driver.Session) *browserutil.Utils {
	tb.Helper()

	var opts []browserutil.Option
	if len(f.config.StyleProperties) > 0 {
		opts = append(opts, browserutil.WithDefaultProperties(f.config.StyleProperties...))
	}
	u, err := browserutil.New(s, f.logger.With(zap.String("test", tb.Name())), opts...)
	if err != nil {
		tb.Fatalf("browser utils: %v", err)
		return nil
	}
	return u
}

// LoginPage starts a session and opens the login page at the configured
// base URL.
func (f *Fixture) LoginPage(tb testing.TB) *pages.LoginPage {
	tb.Helper()

	s := f.Session(tb)
	page, err := pages.NewLoginPage(s, f.Utils(tb, s))
	if err != nil {
		tb.Fatalf("login page: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.config.Timeout)
	defer cancel()
	if err := page.Open(ctx, f.config.BaseURL); err != nil {
		tb.Fatalf("open login page: %v", err)
		return nil
	}
	return page
}

// Close ends the run: the shared session, if any, and the browser provider.
func (f *Fixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.provider.Close()
}

func (f *Fixture) screenshot(tb testing.TB, s driver.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := s.Screenshot(ctx)
	if err != nil {
		f.logger.Warn("failure screenshot not taken", zap.String("test", tb.Name()), zap.Error(err))
		return
	}

	if err := os.MkdirAll(f.config.ScreenshotDir, 0755); err != nil {
		f.logger.Warn("failed to create screenshot directory", zap.Error(err))
		return
	}

	path := filepath.Join(f.config.ScreenshotDir, f.screenshotName(tb.Name()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		f.logger.Warn("failed to write screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	tb.Logf("screenshot saved to %s", path)
}

func (f *Fixture) screenshotName(testName string) string {
	safeTestName := strings.ReplaceAll(testName, " ", "_")
	safeTestName = strings.ReplaceAll(safeTestName, "/", "_")
	safeTestName = strings.ReplaceAll(safeTestName, "\\", "_")

	f.mu.Lock()
	f.screenshotCounter[testName]++
	counter := f.screenshotCounter[testName]
	f.mu.Unlock()

	if counter == 1 {
		return safeTestName + ".png"
	}
	return fmt.Sprintf("%s_%d.png", safeTestName, counter)
}
