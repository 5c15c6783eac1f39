package cart

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"goflare.io/storefront/models"
)

// snapshotRecord is the persisted shape of one line item. Field names and
// JSON types are shared with every other reader of the stored cart.
type snapshotRecord struct {
	ID       models.TypedID `json:"id"`
	Title    string         `json:"title"`
	Price    float64        `json:"price"`
	Image    string         `json:"image"`
	Quantity int            `json:"quantity"`
}

func encodeSnapshot(items []models.LineItem) ([]byte, error) {
	records := make([]snapshotRecord, 0, len(items))
	for _, item := range items {
		records = append(records, snapshotRecord{
			ID:       models.TypedID{ID: item.ProductID, Quoted: item.QuotedID},
			Title:    item.Title,
			Price:    item.UnitPrice.InexactFloat64(),
			Image:    item.Image,
			Quantity: item.Quantity,
		})
	}
	return json.Marshal(records)
}

// decodeSnapshot rejects any snapshot that would break the cart invariants:
// missing ids, duplicate ids, quantities outside 1..MaxQuantity or negative
// prices.
func decodeSnapshot(data []byte) ([]models.LineItem, error) {
	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}

	items := make([]models.LineItem, 0, len(records))
	seen := make(map[models.ProductID]struct{}, len(records))
	for i, rec := range records {
		id := rec.ID.ID
		if id == "" {
			return nil, fmt.Errorf("cart snapshot entry %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("cart snapshot has duplicate id %s", id)
		}
		if rec.Quantity < 1 || rec.Quantity > MaxQuantity {
			return nil, fmt.Errorf("cart snapshot entry %s has quantity %d", id, rec.Quantity)
		}
		if rec.Price < 0 {
			return nil, fmt.Errorf("cart snapshot entry %s has negative price", id)
		}
		seen[id] = struct{}{}
		items = append(items, models.LineItem{
			ProductID: id,
			Title:     rec.Title,
			UnitPrice: decimal.NewFromFloat(rec.Price),
			Image:     rec.Image,
			Quantity:  rec.Quantity,
			QuotedID:  rec.ID.Quoted,
		})
	}
	return items, nil
}
