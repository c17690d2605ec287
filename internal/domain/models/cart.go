package models

// CartLine — строка корзины покупателя. Живёт только в памяти процесса,
// в БД не сохраняется; цена и фермер фиксируются в момент добавления.
type CartLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"` // Снимок цены на момент добавления
	FarmerID       int64  `json:"farmer_id"`        // Снимок владельца на момент добавления
}

// CartView — содержимое корзины с посчитанной суммой.
type CartView struct {
	Lines      []CartLine `json:"lines"`
	TotalCents int        `json:"total_cents"`
}
