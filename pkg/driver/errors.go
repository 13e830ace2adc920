package driver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrMissingElement      = errors.New("missing element")
	ErrStaleElement        = errors.New("stale element reference")
	ErrSessionUnavailable  = errors.New("session unavailable")
	ErrElementNotFound     = errors.New("element not found")
)

// ElementNotFoundError is returned by Session.Find when nothing matched the
// locator before the find timeout expired.
type ElementNotFoundError struct {
	Locator Locator
	Err     error
}

func (e *ElementNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("element not found: %s: %v", e.Locator, e.Err)
	}
	return fmt.Sprintf("element not found: %s", e.Locator)
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.Err
}

// ActionError ties a failure to the user-level action that was running.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Action, Kind(e.Err), e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Kind names the taxonomy bucket of err, or "error" when it has none.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingCollaborator):
		return "MissingCollaboratorError"
	case errors.Is(err, ErrMissingElement):
		return "MissingElementError"
	case errors.Is(err, ErrStaleElement):
		return "StaleElementError"
	case errors.Is(err, ErrSessionUnavailable):
		return "SessionUnavailableError"
	case errors.Is(err, ErrElementNotFound):
		return "ElementNotFoundError"
	default:
		return "error"
	}
}

// staleMarkers are fragments of CDP and Playwright messages reported when a
// node handle outlived its document.
var staleMarkers = []string{
	"stale element reference",
	"No node with given id",
	"Could not find node with given id",
	"Node with given id does not belong to the document",
	"Cannot find context with specified id",
	"Could not find object with given id",
	"Execution context was destroyed",
	"not attached to the DOM",
	"JSHandle is disposed",
}

// classify maps backend failures on an element onto the shared taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStaleElement) || errors.Is(err, ErrSessionUnavailable) {
		return err
	}
	msg := err.Error()
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrStaleElement, err)
		}
	}
	return err
}
