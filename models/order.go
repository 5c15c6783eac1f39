package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/storefront/models/enum"
)

// Receipt 結帳完成後回傳給頁面的摘要，不會送往任何後端
type Receipt struct {
	Reference    string              `json:"reference"`
	Items        []LineItem          `json:"items"`
	ItemCount    int                 `json:"item_count"`
	Shipping     enum.ShippingMethod `json:"shipping"`
	Currency     stripe.Currency     `json:"currency"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	ShippingCost decimal.Decimal     `json:"shipping_cost"`
	Total        decimal.Decimal     `json:"total"`
	PlacedAt     time.Time           `json:"placed_at"`
}
