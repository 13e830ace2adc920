package pages

import (
	"context"
	"fmt"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/driver"
)

var shopCheckout = driver.CSS("a.nav-link.btn.btn-primary")

type ShopPage struct {
	base
}

func NewShopPage(s driver.Session, u *browserutil.Utils) (*ShopPage, error) {
	b, err := newBase(s, u)
	if err != nil {
		return nil, err
	}
	return &ShopPage{base: b}, nil
}

func productButton(name string) driver.Locator {
	return driver.XPath(fmt.Sprintf(`//app-card[.//h4/a[normalize-space()=%s]]//div[contains(@class,"card-footer")]/button`, xpathLiteral(name)))
}

// AddToCart adds the named product to the cart.
func (p *ShopPage) AddToCart(ctx context.Context, product string) error {
	return p.click(ctx, "add "+product+" to cart", productButton(product))
}

// ProceedToCheckout opens the cart. The checkout control's style is logged
// before the click for diagnostics; an inspection failure does not stop the
// action.
func (p *ShopPage) ProceedToCheckout(ctx context.Context) (*CartPage, error) {
	const action = "proceed to checkout"
	el, err := p.find(ctx, action, shopCheckout)
	if err != nil {
		return nil, err
	}
	p.utils.InspectStyleProperties(ctx, el, nil)

	if err := el.Click(ctx); err != nil {
		return nil, &driver.ActionError{Action: action, Err: err}
	}
	return NewCartPage(p.session, p.utils)
}
