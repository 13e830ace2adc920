// Package pages holds the page objects for the ProtoCommerce practice shop.
//
// Every page is built with its session and its browserutil.Utils through a
// constructor and passes both on to the page it navigates to. A page built
// any other way fails each action with driver.ErrMissingCollaborator.
package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/driver"
)

// base is embedded by every page object.
type base struct {
	session driver.Session
	utils   *browserutil.Utils
}

func newBase(s driver.Session, u *browserutil.Utils) (base, error) {
	if s == nil {
		return base{}, fmt.Errorf("page session: %w", driver.ErrMissingCollaborator)
	}
	if u == nil {
		return base{}, fmt.Errorf("page utils: %w", driver.ErrMissingCollaborator)
	}
	return base{session: s, utils: u}, nil
}

func (b base) ready(action string) error {
	switch {
	case b.session == nil:
		return &driver.ActionError{Action: action, Err: fmt.Errorf("session: %w", driver.ErrMissingCollaborator)}
	case b.utils == nil:
		return &driver.ActionError{Action: action, Err: fmt.Errorf("utils: %w", driver.ErrMissingCollaborator)}
	}
	return nil
}

func (b base) find(ctx context.Context, action string, loc driver.Locator) (driver.Element, error) {
	if err := b.ready(action); err != nil {
		return nil, err
	}
	el, err := b.session.Find(ctx, loc)
	if err != nil {
		return nil, &driver.ActionError{Action: action, Err: err}
	}
	return el, nil
}

func (b base) click(ctx context.Context, action string, loc driver.Locator) error {
	el, err := b.find(ctx, action, loc)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return &driver.ActionError{Action: action, Err: err}
	}
	return nil
}

func (b base) typeInto(ctx context.Context, action string, loc driver.Locator, text string) error {
	el, err := b.find(ctx, action, loc)
	if err != nil {
		return err
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return &driver.ActionError{Action: action, Err: err}
	}
	return nil
}

func (b base) text(ctx context.Context, action string, loc driver.Locator) (string, error) {
	el, err := b.find(ctx, action, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", &driver.ActionError{Action: action, Err: err}
	}
	return text, nil
}

// Title returns the page title through the shared utils.
func (b base) Title(ctx context.Context) (string, error) {
	if err := b.ready("read title"); err != nil {
		return "", err
	}
	return b.utils.PageTitle(ctx)
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequence, so text holding both quote kinds is split into a concat() call.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, 2*len(parts)-1)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
