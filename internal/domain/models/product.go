package models

import "time"

// Product представляет товар, выставленный фермером на продажу
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"` // Относительный путь к изображению; хранение файлов — забота внешнего слоя
	Quantity   int       `json:"quantity"`        // Заявленное физическое количество; уменьшается только при доставке заказа
	PriceCents int       `json:"price_cents"`     // Цена за единицу в центах
	FarmerID   int64     `json:"farmer_id"`
	Rating     int       `json:"rating"` // Оценка качества от внешнего классификатора, выставляется один раз при создании
	CreatedAt  time.Time `json:"created_at"`
}

// ProductStock — товар вместе с вычисленным остатком для витрины.
// Remaining = Quantity минус сумма количеств заказов в статусах pending/accepted.
type ProductStock struct {
	Product
	Remaining int `json:"remaining"`
}
