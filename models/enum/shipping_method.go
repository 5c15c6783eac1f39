package enum

// ShippingMethod 表示結帳時選擇的運送方式
type ShippingMethod string

const (
	ShippingMethodStandard  ShippingMethod = "standard"
	ShippingMethodExpress   ShippingMethod = "express"
	ShippingMethodOvernight ShippingMethod = "overnight"
)

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingMethodStandard, ShippingMethodExpress, ShippingMethodOvernight:
		return true
	default:
		return false
	}
}
