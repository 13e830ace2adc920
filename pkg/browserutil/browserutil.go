// Package browserutil holds read-only inspection helpers shared by every
// page object. Failures here are reported as results and log lines rather
// than returned errors, so a diagnostic call never fails a test on its own.
package browserutil

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kidandcat/pomkit/pkg/driver"
)

// DefaultProperties are inspected when the caller names none.
var DefaultProperties = []string{"background-color", "color", "font-size"}

// Utils wraps a session it does not own.
type Utils struct {
	session  driver.Session
	logger   *zap.Logger
	defaults []string
}

type Option func(*Utils)

// WithDefaultProperties replaces DefaultProperties for this Utils.
func WithDefaultProperties(props ...string) Option {
	return func(u *Utils) {
		if len(props) > 0 {
			u.defaults = append([]string(nil), props...)
		}
	}
}

// New binds a Utils to s. A nil session is rejected.
func New(s driver.Session, logger *zap.Logger, opts ...Option) (*Utils, error) {
	if s == nil {
		return nil, fmt.Errorf("browserutil: session: %w", driver.ErrMissingCollaborator)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Utils{
		session:  s,
		logger:   logger.Named("browserutil"),
		defaults: DefaultProperties,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *Utils) log() *zap.Logger {
	if u == nil || u.logger == nil {
		return zap.NewNop()
	}
	return u.logger
}

// PageTitle returns the title of the current page.
func (u *Utils) PageTitle(ctx context.Context) (string, error) {
	if u == nil || u.session == nil {
		return "", driver.ErrSessionUnavailable
	}
	return u.session.Title(ctx)
}

// StyleReport is the outcome of InspectStyleProperties. Values holds every
// property read before the first failure; Err is nil on full success.
type StyleReport struct {
	Values  map[string]string
	Partial bool
	Err     error
}

func (r StyleReport) OK() bool {
	return r.Err == nil
}

// PropertyError records which property was being read when inspection
// stopped.
type PropertyError struct {
	Property string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("css property %q: %v", e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

type inspectConfig struct {
	labels map[string]string
}

type InspectOption func(*inspectConfig)

// WithLabels overrides the label logged for the given properties.
func WithLabels(labels map[string]string) InspectOption {
	return func(c *inspectConfig) {
		c.labels = labels
	}
}

// Label is the default log label for a property: "background-color"
// becomes "Background Color".
func Label(property string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(property, "-", " "))
}

// InspectStyleProperties reads the computed value of each property on el, in
// order, logging one line per property. It stops at the first failure and
// returns what it had collected with Partial set.
//
// A nil element yields an empty map and ErrMissingElement. A Utils without
// a session yields ErrSessionUnavailable.
func (u *Utils) InspectStyleProperties(ctx context.Context, el driver.Element, properties []string, opts ...InspectOption) StyleReport {
	report := StyleReport{Values: map[string]string{}}
	logger := u.log()

	if u == nil || u.session == nil {
		logger.Warn("style inspection without a session")
		report.Err = driver.ErrSessionUnavailable
		return report
	}
	if el == nil {
		logger.Warn("style inspection skipped: element is missing")
		report.Err = driver.ErrMissingElement
		return report
	}

	var cfg inspectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(properties) == 0 {
		properties = u.defaults
		if len(properties) == 0 {
			properties = DefaultProperties
		}
	}

	for _, prop := range properties {
		label, ok := cfg.labels[prop]
		if !ok {
			label = Label(prop)
		}

		value, err := el.CSSValue(ctx, prop)
		if err != nil {
			logger.Warn("style inspection aborted",
				zap.String("label", label),
				zap.String("property", prop),
				zap.String("kind", driver.Kind(err)),
				zap.Int("collected", len(report.Values)),
				zap.Error(err),
			)
			report.Partial = true
			report.Err = &PropertyError{Property: prop, Err: err}
			return report
		}

		logger.Info(label, zap.String("property", prop), zap.String("value", value))
		report.Values[prop] = value
	}
	return report
}
