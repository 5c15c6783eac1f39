package checkout

import (
	"github.com/shopspring/decimal"

	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
)

var shippingCosts = map[enum.ShippingMethod]decimal.Decimal{
	enum.ShippingMethodStandard:  decimal.Zero,
	enum.ShippingMethodExpress:   decimal.RequireFromString("9.99"),
	enum.ShippingMethodOvernight: decimal.RequireFromString("19.99"),
}

// ShippingCost returns the flat fee for method; unknown methods cost nothing.
func ShippingCost(method enum.ShippingMethod) decimal.Decimal {
	if cost, ok := shippingCosts[method]; ok {
		return cost
	}
	return decimal.Zero
}

type Summary struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

func Summarize(totals models.Totals, method enum.ShippingMethod) Summary {
	shipping := ShippingCost(method)
	return Summary{
		Subtotal: totals.Subtotal,
		Shipping: shipping,
		Total:    totals.Subtotal.Add(shipping),
	}
}
