package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestScenarioDiscountAndTax(t *testing.T) {
	lines := []Line{{Quantity: 3, UnitPrice: d("100.00"), Discount: d("10")}}
	subtotal, total, err := Total(lines, d("15"))
	require.NoError(t, err)
	require.Equal(t, "270.00", subtotal.StringFixed(2))
	require.Equal(t, "310.50", total.StringFixed(2))
	require.True(t, total.Equal(d("310.5")))
}

func TestSubtotalRoundsOnlyAtAggregate(t *testing.T) {
	// Each net is 0.333..., per-line rounding would give 0.99.
	lines := []Line{
		{Quantity: 1, UnitPrice: d("1"), Discount: d("66.6666666667")},
		{Quantity: 1, UnitPrice: d("1"), Discount: d("66.6666666667")},
		{Quantity: 1, UnitPrice: d("1"), Discount: d("66.6666666667")},
	}
	require.True(t, Subtotal(lines).Equal(d("1.00")))
}

func TestSubtotalIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 100; run++ {
		lines := make([]Line, 1+rng.Intn(8))
		for i := range lines {
			lines[i] = Line{
				Quantity:  int64(1 + rng.Intn(20)),
				UnitPrice: decimal.New(int64(rng.Intn(100000)), -2),
				Discount:  decimal.NewFromInt(int64(rng.Intn(101))),
			}
		}
		want := Subtotal(lines)
		shuffled := append([]Line(nil), lines...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.True(t, want.Equal(Subtotal(shuffled)))
	}
}

func TestSubtotalMonotonicity(t *testing.T) {
	base := Line{Quantity: 2, UnitPrice: d("19.99"), Discount: d("5")}
	ref := Subtotal([]Line{base})

	moreQty := base
	moreQty.Quantity = 3
	require.True(t, Subtotal([]Line{moreQty}).GreaterThanOrEqual(ref))

	morePrice := base
	morePrice.UnitPrice = d("20.00")
	require.True(t, Subtotal([]Line{morePrice}).GreaterThanOrEqual(ref))

	moreDiscount := base
	moreDiscount.Discount = d("6")
	require.True(t, Subtotal([]Line{moreDiscount}).LessThanOrEqual(ref))
}

func TestTaxRoundTripWithinOneCent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cent := d("0.01")
	for i := 0; i < 2000; i++ {
		subtotal := decimal.New(rng.Int63n(100000001), -2) // 0 .. 1,000,000.00
		rate := decimal.New(rng.Int63n(10001), -2)         // 0 .. 100.00
		total := ApplyTax(subtotal, rate)
		back := Reverse(total, rate, true).Subtotal
		require.True(t, back.Sub(subtotal).Abs().LessThanOrEqual(cent), "subtotal=%s rate=%s back=%s", subtotal, rate, back)
	}
}

func TestTotalRejectsInvalidInput(t *testing.T) {
	_, _, err := Total([]Line{{Quantity: 0, UnitPrice: d("1")}}, d("15"))
	require.ErrorIs(t, err, ErrInvalidLine)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = Total([]Line{{Quantity: 1, UnitPrice: d("-1")}}, d("15"))
	require.ErrorIs(t, err, ErrInvalidLine)

	_, _, err = Total([]Line{{Quantity: 1, UnitPrice: d("1"), Discount: d("100.5")}}, d("15"))
	require.ErrorIs(t, err, ErrInvalidLine)

	_, _, err = Total(nil, d("-0.01"))
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestReverseBreakdown(t *testing.T) {
	withTax := Reverse(d("310.50"), d("15"), true)
	require.Equal(t, "270.00", withTax.Subtotal.StringFixed(2))
	require.Equal(t, "40.50", withTax.Tax.StringFixed(2))
	require.Equal(t, "310.50", withTax.Total.StringFixed(2))

	withoutTax := Reverse(d("310.50"), d("15"), false)
	require.True(t, withoutTax.Tax.IsZero())
	require.Equal(t, "270.00", withoutTax.Total.StringFixed(2))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 12.345 ")
	require.NoError(t, err)
	require.True(t, amount.Equal(d("12.345")))

	amount, err = ParseAmount("")
	require.NoError(t, err)
	require.True(t, amount.IsZero())

	_, err = ParseAmount("12,50")
	require.ErrorIs(t, err, shared.ErrValidation)
}
