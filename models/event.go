package models

import (
	"encoding/json"
	"time"

	"goflare.io/storefront/models/enum"
)

type Event struct {
	ID         string          `json:"id"`
	Type       enum.EventType  `json:"type"`
	SessionID  string          `json:"session_id"`
	CartKey    string          `json:"cart_key"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// CartUpdatedData is the payload of enum.EventTypeCartUpdated.
type CartUpdatedData struct {
	Reason         CartChangeReason `json:"reason"`
	TotalItemCount int              `json:"total_item_count"`
	Subtotal       string           `json:"subtotal"`
}
