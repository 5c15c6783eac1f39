// Package checkout validates the checkout form and prices shipping. Nothing
// here contacts a payment provider.
package checkout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"goflare.io/storefront/models/enum"
)

const (
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldAddress    = "address"
	FieldCity       = "city"
	FieldZip        = "zip"
	FieldCardNumber = "card_number"
	FieldExpiry     = "expiry"
	FieldCVV        = "cvv"
	FieldShipping   = "shipping"
)

type Form struct {
	FirstName  string
	LastName   string
	Address    string
	City       string
	Zip        string
	CardNumber string
	Expiry     string
	CVV        string
	Shipping   enum.ShippingMethod
}

// ValidationError maps each invalid field to a message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

// Validate reports every invalid field at once. Surrounding whitespace is
// ignored.
func Validate(form Form) error {
	fields := make(map[string]string)

	required := []struct {
		name  string
		value string
	}{
		{FieldFirstName, form.FirstName},
		{FieldLastName, form.LastName},
		{FieldAddress, form.Address},
		{FieldCity, form.City},
		{FieldZip, form.Zip},
		{FieldCardNumber, form.CardNumber},
		{FieldExpiry, form.Expiry},
		{FieldCVV, form.CVV},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields[f.name] = "is required"
		}
	}

	if zip := strings.TrimSpace(form.Zip); zip != "" && (len(zip) > 5 || !isDigits(zip)) {
		fields[FieldZip] = "must be up to 5 digits"
	}
	if card := strings.TrimSpace(form.CardNumber); card != "" && !isDigits(card) {
		fields[FieldCardNumber] = "must contain digits only"
	}
	if expiry := strings.TrimSpace(form.Expiry); expiry != "" && !validExpiry(expiry) {
		fields[FieldExpiry] = "must be MM/YY"
	}
	if cvv := strings.TrimSpace(form.CVV); cvv != "" && (len(cvv) != 3 || !isDigits(cvv)) {
		fields[FieldCVV] = "must be 3 digits"
	}
	if !form.Shipping.Valid() {
		fields[FieldShipping] = "unknown shipping method"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func validExpiry(s string) bool {
	if len(s) != 5 || s[2] != '/' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return false
	}
	month, err := strconv.Atoi(s[:2])
	return err == nil && month >= 1 && month <= 12
}
