package cart

import "github.com/shopspring/decimal"

// Pricing holds the shipping and tax rules used to derive cart totals.
type Pricing struct {
	// FreeShippingOver is the items total above which shipping is free.
	FreeShippingOver decimal.Decimal

	// ShippingFee is charged when the items total is at or below FreeShippingOver.
	ShippingFee decimal.Decimal

	// TaxRate is applied to the rounded items total.
	TaxRate decimal.Decimal
}

// DefaultPricing returns free shipping over 100.00, a 10.00 fee otherwise,
// and 15% tax.
func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingOver: decimal.NewFromInt(100),
		ShippingFee:      decimal.NewFromInt(10),
		TaxRate:          decimal.RequireFromString("0.15"),
	}
}

// Totals are the derived amounts of a cart, each rounded to cents.
type Totals struct {
	Items    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Grand    decimal.Decimal
}

// Compute derives totals from lines. Line subtotals are summed exactly and
// rounded once; tax and grand total are computed from the rounded items
// total. An empty cart is all zeros, including shipping.
func (p Pricing) Compute(lines []Line) Totals {
	if len(lines) == 0 {
		return Totals{}
	}

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	items := round2(sum)

	shipping := p.ShippingFee
	if items.GreaterThan(p.FreeShippingOver) {
		shipping = decimal.Zero
	}
	shipping = round2(shipping)

	tax := round2(p.TaxRate.Mul(items))
	grand := round2(items.Add(shipping).Add(tax))

	return Totals{Items: items, Shipping: shipping, Tax: tax, Grand: grand}
}

func (t Totals) apply(s *State) {
	s.ItemsTotal = FormatAmount(t.Items)
	s.ShippingCost = FormatAmount(t.Shipping)
	s.TaxAmount = FormatAmount(t.Tax)
	s.GrandTotal = FormatAmount(t.Grand)
}

// FormatAmount renders d with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return round2(d).StringFixed(2)
}

// round2 rounds half away from zero, which is half-up for the non-negative
// amounts a cart holds.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
