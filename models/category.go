package models

// CategorySummary 分類磁貼所需的資料
type CategorySummary struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	ProductCount int    `json:"product_count"`
	Image        string `json:"image"`
}
