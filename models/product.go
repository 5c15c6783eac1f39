package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductID 商品識別碼。參考目錄使用整數，其他目錄可能使用字串。
type ProductID string

// MarshalJSON writes canonical non-negative integers as JSON numbers and
// everything else as JSON strings, so ids round-trip in the catalog's own type.
func (id ProductID) MarshalJSON() ([]byte, error) {
	if id.isNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("product id is null")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("invalid product id %s: %w", data, err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string {
	return string(id)
}

func (id ProductID) isNumeric() bool {
	if len(id) == 0 || len(id) > 18 {
		return false
	}
	if len(id) > 1 && id[0] == '0' {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// TypedID is a ProductID that remembers whether a numeric looking id arrived
// as a JSON string, so it is written back as a string too.
type TypedID struct {
	ID     ProductID
	Quoted bool
}

func (t TypedID) MarshalJSON() ([]byte, error) {
	if t.Quoted {
		return json.Marshal(string(t.ID))
	}
	return t.ID.MarshalJSON()
}

func (t *TypedID) UnmarshalJSON(data []byte) error {
	if err := t.ID.UnmarshalJSON(data); err != nil {
		return err
	}
	t.Quoted = bytes.TrimSpace(data)[0] == '"' && t.ID.isNumeric()
	return nil
}

// Product 代表目錄中的商品
type Product struct {
	ID          ProductID `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	Rating      Rating    `json:"rating"`
	// QuotedID 目錄以字串傳回數字形式的 id
	QuotedID bool `json:"-"`
}

type productJSON Product

func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID TypedID `json:"id"`
		*productJSON
	}{
		ID:          TypedID{ID: p.ID, Quoted: p.QuotedID},
		productJSON: (*productJSON)(&p),
	})
}

func (p *Product) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID TypedID `json:"id"`
		*productJSON
	}{productJSON: (*productJSON)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID, p.QuotedID = aux.ID.ID, aux.ID.Quoted
	return nil
}

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}
