package enum

type EventType string

const (
	EventTypeCartUpdated       EventType = "cart.updated"
	EventTypeCheckoutCompleted EventType = "checkout.completed"
)
