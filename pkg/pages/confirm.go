package pages

import (
	"context"
	"fmt"

	"github.com/kidandcat/pomkit/pkg/browserutil"
	"github.com/kidandcat/pomkit/pkg/driver"
)

var (
	confirmCountry  = driver.ID("country")
	confirmTerms    = driver.CSS("label[for='checkbox2']")
	confirmPurchase = driver.CSS("input[type='submit']")
	confirmSuccess  = driver.CSS(".alert-success")
)

type ConfirmPage struct {
	base
}

func NewConfirmPage(s driver.Session, u *browserutil.Utils) (*ConfirmPage, error) {
	b, err := newBase(s, u)
	if err != nil {
		return nil, err
	}
	return &ConfirmPage{base: b}, nil
}

func countrySuggestion(country string) driver.Locator {
	return driver.XPath(fmt.Sprintf(`//div[contains(@class,"suggestions")]//a[normalize-space()=%s]`, xpathLiteral(country)))
}

// SelectCountry types prefix into the country field and picks country from
// the suggestions.
func (p *ConfirmPage) SelectCountry(ctx context.Context, prefix, country string) error {
	const action = "select delivery country"
	if err := p.typeInto(ctx, action, confirmCountry, prefix); err != nil {
		return err
	}
	return p.click(ctx, action, countrySuggestion(country))
}

func (p *ConfirmPage) AcceptTerms(ctx context.Context) error {
	return p.click(ctx, "accept terms", confirmTerms)
}

func (p *ConfirmPage) Purchase(ctx context.Context) error {
	return p.click(ctx, "purchase", confirmPurchase)
}

// SuccessMessage returns the confirmation banner. Its style is logged so a
// failing assertion on the banner comes with its colours in the report.
func (p *ConfirmPage) SuccessMessage(ctx context.Context) (string, error) {
	const action = "read purchase confirmation"
	el, err := p.find(ctx, action, confirmSuccess)
	if err != nil {
		return "", err
	}
	p.utils.InspectStyleProperties(ctx, el, nil)

	text, err := el.Text(ctx)
	if err != nil {
		return "", &driver.ActionError{Action: action, Err: err}
	}
	return text, nil
}
