package driver

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Shared turns a Provider into a session-scoped one: the first Acquire
// starts the underlying session and every later Acquire returns the same
// handle. Handles given out by Shared do not own the session, so their
// Release is a no-op; Close releases it at the end of the run.
//
// Page objects built on a shared handle see whatever page state the
// previous test left behind. Tests that share it must navigate to a known
// page first and must not call t.Parallel.
type Shared struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.Mutex
	session Session
	closed  bool
}

func NewShared(p Provider, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shared{provider: p, logger: logger}
}

func (sh *Shared) Acquire(ctx context.Context) (Session, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.closed {
		return nil, ErrSessionUnavailable
	}
	if sh.session == nil {
		if sh.provider == nil {
			return nil, ErrMissingCollaborator
		}
		s, err := sh.provider.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		sh.logger.Info("shared session started")
		sh.session = s
	}
	return borrowed{Session: sh.session}, nil
}

// Close releases the shared session, if one was started, and closes the
// wrapped provider. It is safe to call more than once.
func (sh *Shared) Close() error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.closed {
		return nil
	}
	sh.closed = true

	var errs []error
	if sh.session != nil {
		errs = append(errs, sh.session.Release())
		sh.session = nil
		sh.logger.Info("shared session released")
	}
	if sh.provider != nil {
		errs = append(errs, sh.provider.Close())
	}
	return errors.Join(errs...)
}

type borrowed struct {
	Session
}

func (borrowed) Release() error { return nil }
