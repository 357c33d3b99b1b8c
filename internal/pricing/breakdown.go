package pricing

import "github.com/shopspring/decimal"

// Breakdown splits a stored total into the figures printed on a document.
type Breakdown struct {
	Rate        decimal.Decimal `json:"rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	IncludesTax bool            `json:"includes_tax"`
}

// Reverse derives the pre-tax subtotal from a taxed total. With includeTax off
// the printed total is the subtotal and the tax line is zero.
func Reverse(total, ratePercent decimal.Decimal, includeTax bool) Breakdown {
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	subtotal := RoundCents(total.Div(divisor))
	out := Breakdown{Rate: ratePercent, Subtotal: subtotal, IncludesTax: includeTax}
	if includeTax {
		out.Tax = RoundCents(subtotal.Mul(ratePercent).Div(hundred))
		out.Total = RoundCents(total)
		return out
	}
	out.Tax = decimal.Zero
	out.Total = subtotal
	return out
}
