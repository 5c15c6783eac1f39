package models

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
)

// DefaultCurrency 商店只以單一幣別計價
const DefaultCurrency = stripe.CurrencyUSD

// LineItem 代表購物車中的單個商品項目
type LineItem struct {
	ProductID ProductID       `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	// QuotedID 快照中以字串保存 id
	QuotedID bool `json:"-"`
}

// Subtotal returns UnitPrice * Quantity without rounding.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals 購物車的衍生數值，不會被儲存
type Totals struct {
	TotalItemCount int             `json:"total_item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Currency       stripe.Currency `json:"currency"`
}

// SubtotalString is the presentation form of Subtotal, rounded to cents.
func (t Totals) SubtotalString() string {
	return FormatAmount(t.Subtotal)
}

// ComputeTotals sums quantities and line subtotals over items. The item
// count saturates at math.MaxInt instead of wrapping.
func ComputeTotals(items []LineItem) Totals {
	totals := Totals{Subtotal: decimal.Zero, Currency: DefaultCurrency}
	for _, item := range items {
		if totals.TotalItemCount > math.MaxInt-item.Quantity {
			totals.TotalItemCount = math.MaxInt
		} else {
			totals.TotalItemCount += item.Quantity
		}
		totals.Subtotal = totals.Subtotal.Add(item.Subtotal())
	}
	return totals
}

// CartChange is delivered to cart observers after every accepted mutation.
type CartChange struct {
	Reason    CartChangeReason `json:"reason"`
	ProductID ProductID        `json:"product_id,omitempty"`
	ItemCount int              `json:"item_count"`
	Totals    Totals           `json:"totals"`
	// Version increases by one with every change of the same store.
	Version   uint64           `json:"version"`
}

type CartChangeReason string

const (
	CartChangeHydrated    CartChangeReason = "hydrated"
	CartChangeItemAdded   CartChangeReason = "item_added"
	CartChangeQuantitySet CartChangeReason = "quantity_set"
	CartChangeItemRemoved CartChangeReason = "item_removed"
	CartChangeCleared     CartChangeReason = "cleared"
)
