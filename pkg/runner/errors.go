package runner

import (
	"errors"
	"fmt"
)

var (
	ErrNoTestResults = errors.New("no test results available")
	ErrNoPackages    = errors.New("no packages to test")
)

// ExitError is returned when `go test` fails without reporting a single
// test, usually a build failure or a bad flag.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("go test exited with code %d: %v", e.Code, ErrNoTestResults)
}

func (e *ExitError) Unwrap() error {
	return ErrNoTestResults
}
