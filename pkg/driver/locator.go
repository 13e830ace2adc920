package driver

import (
	"fmt"
	"strings"
)

type By string

const (
	ByID    By = "id"
	ByCSS   By = "css"
	ByXPath By = "xpath"
	ByName  By = "name"
)

// Locator is a static selector used to find an Element.
type Locator struct {
	By    By
	Value string
}

func ID(v string) Locator    { return Locator{By: ByID, Value: v} }
func CSS(v string) Locator   { return Locator{By: ByCSS, Value: v} }
func XPath(v string) Locator { return Locator{By: ByXPath, Value: v} }
func Name(v string) Locator  { return Locator{By: ByName, Value: v} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// IsXPath reports whether the locator must be evaluated as XPath.
func (l Locator) IsXPath() bool {
	return l.By == ByXPath
}

// Selector returns the CSS selector for the locator. XPath locators are
// returned as-is.
func (l Locator) Selector() (string, error) {
	if l.Value == "" {
		return "", fmt.Errorf("empty %s locator", l.By)
	}
	switch l.By {
	case ByID:
		return fmt.Sprintf(`[id="%s"]`, escapeAttr(l.Value)), nil
	case ByName:
		return fmt.Sprintf(`[name="%s"]`, escapeAttr(l.Value)), nil
	case ByCSS, ByXPath:
		return l.Value, nil
	default:
		return "", fmt.Errorf("unsupported locator strategy %q", l.By)
	}
}

func escapeAttr(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
