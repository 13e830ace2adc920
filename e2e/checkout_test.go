//go:build e2e

package e2e

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/pomkit/pkg/driver"
	"github.com/kidandcat/pomkit/pkg/pages"
)

func TestCheckout(t *testing.T) {
	fx.Parallel(t)
	creds := credentials(t)
	ctx := t.Context()

	login := fx.LoginPage(t)

	shop, err := login.Login(ctx, creds.Username, creds.Password)
	require.NoError(t, err)

	title, err := shop.Title(ctx)
	require.NoError(t, err)
	t.Logf("shop title: %s", title)

	require.NoError(t, shop.AddToCart(ctx, "Blackberry"))

	cart, err := shop.ProceedToCheckout(ctx)
	require.NoError(t, err)

	confirm, err := cart.Checkout(ctx)
	require.NoError(t, err)

	require.NoError(t, confirm.SelectCountry(ctx, "ind", "India"))
	require.NoError(t, confirm.AcceptTerms(ctx))
	require.NoError(t, confirm.Purchase(ctx))

	msg, err := confirm.SuccessMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg, "Success")
}

func TestLoginRejected(t *testing.T) {
	fx.Parallel(t)
	creds := credentials(t)
	ctx := t.Context()

	login := fx.LoginPage(t)

	_, err := login.Login(ctx, creds.Username, creds.Password+"-wrong")
	require.NoError(t, err)

	msg, err := login.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.True(t, strings.Contains(strings.ToLower(msg), "incorrect"), "unexpected banner %q", msg)
}

func TestCheckoutButtonStyle(t *testing.T) {
	fx.Parallel(t)
	creds := credentials(t)
	ctx := t.Context()

	s := fx.Session(t)
	utils := fx.Utils(t, s)

	login, err := pages.NewLoginPage(s, utils)
	require.NoError(t, err)
	require.NoError(t, login.Open(ctx, fx.Config().BaseURL))
	_, err = login.Login(ctx, creds.Username, creds.Password)
	require.NoError(t, err)

	el, err := s.Find(ctx, driver.CSS("a.nav-link.btn.btn-primary"))
	require.NoError(t, err)

	report := utils.InspectStyleProperties(ctx, el, nil)
	require.NoError(t, report.Err)
	assert.Len(t, report.Values, 3)
	assert.NotEmpty(t, report.Values["background-color"])
}
