package catalog

import (
	"strings"

	"goflare.io/storefront/models"
)

// NormalizeCategory lowercases, trims and collapses inner whitespace so that
// "Men’s  Clothing " and "men's clothing" compare equal.
func NormalizeCategory(category string) string {
	category = strings.ReplaceAll(category, "’", "'")
	return strings.ToLower(strings.Join(strings.Fields(category), " "))
}

// Search keeps products whose title, description or category contains query,
// ignoring case. An empty query keeps everything.
func Search(products []*models.Product, query string) []*models.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products
	}

	matched := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), query) ||
			strings.Contains(strings.ToLower(p.Description), query) ||
			strings.Contains(strings.ToLower(p.Category), query) {
			matched = append(matched, p)
		}
	}
	return matched
}

func FilterByCategory(products []*models.Product, category string) []*models.Product {
	want := NormalizeCategory(category)
	matched := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if NormalizeCategory(p.Category) == want {
			matched = append(matched, p)
		}
	}
	return matched
}

// CountByCategory maps each normalized category to its product count.
func CountByCategory(products []*models.Product) map[string]int {
	counts := make(map[string]int)
	for _, p := range products {
		counts[NormalizeCategory(p.Category)]++
	}
	return counts
}
