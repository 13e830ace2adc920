package driver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kidandcat/pomkit/pkg/driver"
	"github.com/kidandcat/pomkit/pkg/driver/mocks"
)

func TestWithReleasesOnEveryExitPath(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(driver.Session) error
		wantErr error
		panics  bool
	}{
		{
			name: "normal return",
			fn:   func(driver.Session) error { return nil },
		},
		{
			name:    "error return",
			fn:      func(driver.Session) error { return boom },
			wantErr: boom,
		},
		{
			name:   "panic",
			fn:     func(driver.Session) error { panic("assertion blew up") },
			panics: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			session := mocks.NewMockSession(ctrl)
			provider := mocks.NewMockProvider(ctrl)

			provider.EXPECT().Acquire(gomock.Any()).Return(session, nil)
			session.EXPECT().Release().Return(nil).Times(1)

			call := func() error { return driver.With(context.Background(), provider, tt.fn) }
			if tt.panics {
				assert.Panics(t, func() { _ = call() })
				return
			}
			err := call()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithAcquireFailureSkipsRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("chrome not installed"))

	called := false
	err := driver.With(context.Background(), provider, func(driver.Session) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not installed")
	assert.False(t, called)
}

func TestWithReportsReleaseError(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Acquire(gomock.Any()).Return(session, nil)
	session.EXPECT().Release().Return(errors.New("browser already gone"))

	err := driver.With(context.Background(), provider, func(driver.Session) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release session")
}

func TestWithNilProvider(t *testing.T) {
	err := driver.With(context.Background(), nil, func(driver.Session) error { return nil })
	assert.ErrorIs(t, err, driver.ErrMissingCollaborator)
}

func TestSharedStartsOnceAndReleasesOnClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	provider := mocks.NewMockProvider(ctrl)

	provider.EXPECT().Acquire(gomock.Any()).Return(session, nil).Times(1)
	session.EXPECT().Title(gomock.Any()).Return("Shop", nil).Times(2)
	gomock.InOrder(
		session.EXPECT().Release().Return(nil).Times(1),
		provider.EXPECT().Close().Return(nil).Times(1),
	)

	shared := driver.NewShared(provider, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := shared.Acquire(ctx)
		require.NoError(t, err)
		title, err := s.Title(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Shop", title)
		// Borrowed handles never release the underlying session.
		require.NoError(t, s.Release())
	}

	require.NoError(t, shared.Close())
	require.NoError(t, shared.Close())

	_, err := shared.Acquire(ctx)
	assert.ErrorIs(t, err, driver.ErrSessionUnavailable)
}

func TestSharedCloseWithoutAcquire(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Close().Return(nil)

	assert.NoError(t, driver.NewShared(provider, nil).Close())
}

func TestSharedAcquireErrorIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	provider := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		provider.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("port in use")),
		provider.EXPECT().Acquire(gomock.Any()).Return(session, nil),
	)

	shared := driver.NewShared(provider, nil)
	_, err := shared.Acquire(context.Background())
	require.Error(t, err)
	_, err = shared.Acquire(context.Background())
	require.NoError(t, err)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		browser string
		want    interface{}
		wantErr bool
	}{
		{browser: "", want: &driver.ChromedpProvider{}},
		{browser: driver.BrowserChromedp, want: &driver.ChromedpProvider{}},
		{browser: driver.BrowserRod, want: &driver.RodProvider{}},
		{browser: driver.BrowserPlaywright, want: &driver.PlaywrightProvider{}},
		{browser: "netscape", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.browser, func(t *testing.T) {
			p, err := driver.NewProvider(driver.Options{Browser: tt.browser}, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.browser)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestLocatorSelector(t *testing.T) {
	tests := []struct {
		loc     driver.Locator
		want    string
		xpath   bool
		wantErr bool
	}{
		{loc: driver.ID("username"), want: `[id="username"]`},
		{loc: driver.Name("q"), want: `[name="q"]`},
		{loc: driver.CSS("a.nav-link.btn-primary"), want: "a.nav-link.btn-primary"},
		{loc: driver.XPath("//a[text()='India']"), want: "//a[text()='India']", xpath: true},
		{loc: driver.ID(`we"ird`), want: `[id="we\"ird"]`},
		{loc: driver.CSS(""), wantErr: true},
		{loc: driver.Locator{By: "link text", Value: "Home"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			got, err := tt.loc.Selector()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.xpath, tt.loc.IsXPath())
		})
	}
}

func TestActionErrorNamesKindAndAction(t *testing.T) {
	notFound := &driver.ElementNotFoundError{Locator: driver.CSS("a.checkout")}
	err := error(&driver.ActionError{Action: "proceed to checkout", Err: notFound})

	assert.ErrorIs(t, err, driver.ErrElementNotFound)
	assert.Equal(t, "proceed to checkout failed (ElementNotFoundError): element not found: css=a.checkout", err.Error())

	var ae *driver.ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "proceed to checkout", ae.Action)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{driver.ErrMissingCollaborator, "MissingCollaboratorError"},
		{driver.ErrMissingElement, "MissingElementError"},
		{driver.ErrStaleElement, "StaleElementError"},
		{driver.ErrSessionUnavailable, "SessionUnavailableError"},
		{&driver.ElementNotFoundError{Locator: driver.ID("x")}, "ElementNotFoundError"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, driver.Kind(tt.err))
	}
}
