package pages

import (
	"context"
	"fmt"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/driver"
)

// LoginPagePath is appended to the base URL by Open.
const LoginPagePath = "/loginpagePractise/"

var (
	loginUsername = driver.ID("username")
	loginPassword = driver.ID("password")
	loginSubmit   = driver.ID("signInBtn")
	loginError    = driver.CSS(".alert-danger")
)

type LoginPage struct {
	base
}

func NewLoginPage(s driver.Session, u *browserutil.Utils) (*LoginPage, error) {
	b, err := newBase(s, u)
	if err != nil {
		return nil, err
	}
	return &LoginPage{base: b}, nil
}

// Open navigates to the login form under baseURL.
func (p *LoginPage) Open(ctx context.Context, baseURL string) error {
	const action = "open login page"
	if err := p.ready(action); err != nil {
		return err
	}
	if err := p.session.Navigate(ctx, baseURL+LoginPagePath); err != nil {
		return &driver.ActionError{Action: action, Err: err}
	}
	return nil
}

// Login submits the credentials and returns the shop page that follows.
func (p *LoginPage) Login(ctx context.Context, username, password string) (*ShopPage, error) {
	const action = "log in"
	if err := p.typeInto(ctx, action, loginUsername, username); err != nil {
		return nil, err
	}
	if err := p.typeInto(ctx, action, loginPassword, password); err != nil {
		return nil, err
	}
	if err := p.click(ctx, action, loginSubmit); err != nil {
		return nil, err
	}
	return NewShopPage(p.session, p.utils)
}

// ErrorMessage returns the banner shown after a rejected login.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	msg, err := p.text(ctx, "read login error", loginError)
	if err != nil {
		return "", fmt.Errorf("login error banner: %w", err)
	}
	return msg, nil
}
