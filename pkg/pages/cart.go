package pages

import (
	"context"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/driver"
)

var cartCheckout = driver.CSS("button.btn-success")

type CartPage struct {
	base
}

func NewCartPage(s driver.Session, u *browserutil.Utils) (*CartPage, error) {
	b, err := newBase(s, u)
	if err != nil {
		return nil, err
	}
	return &CartPage{base: b}, nil
}

// Checkout confirms the cart contents and moves on to delivery details.
func (p *CartPage) Checkout(ctx context.Context) (*ConfirmPage, error) {
	if err := p.click(ctx, "check out cart", cartCheckout); err != nil {
		return nil, err
	}
	return NewConfirmPage(p.session, p.utils)
}
