package storage_test

import (
	"sync"
	"testing"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestCartStorage_AddAndIncrement(t *testing.T) {
	carts := storage.NewCartStorage()

	carts.Add(1, models.CartLine{ProductID: 10, ProductName: "tomatoes", Quantity: 2, UnitPriceCents: 200, FarmerID: 5})
	// повторное добавление увеличивает количество, но сохраняет снимок цены
	carts.Add(1, models.CartLine{ProductID: 10, ProductName: "tomatoes", Quantity: 3, UnitPriceCents: 999, FarmerID: 5})

	assert.Equal(t, 5, carts.Quantity(1, 10))

	lines := carts.Lines(1)
	assert.Len(t, lines, 1)
	assert.Equal(t, 200, lines[0].UnitPriceCents, "price snapshot from the first add must survive")
}

func TestCartStorage_LinesSortedByProductID(t *testing.T) {
	carts := storage.NewCartStorage()
	carts.Add(1, models.CartLine{ProductID: 30, Quantity: 1})
	carts.Add(1, models.CartLine{ProductID: 10, Quantity: 1})
	carts.Add(1, models.CartLine{ProductID: 20, Quantity: 1})

	lines := carts.Lines(1)
	assert.Len(t, lines, 3)
	assert.Equal(t, int64(10), lines[0].ProductID)
	assert.Equal(t, int64(20), lines[1].ProductID)
	assert.Equal(t, int64(30), lines[2].ProductID)
}

func TestCartStorage_RemoveIsNoopWhenAbsent(t *testing.T) {
	carts := storage.NewCartStorage()
	carts.Add(1, models.CartLine{ProductID: 10, Quantity: 1})

	carts.Remove(1, 999) // нет такой строки — не ошибка
	carts.Remove(2, 10)  // чужая корзина не затронута

	assert.Len(t, carts.Lines(1), 1)

	carts.Remove(1, 10)
	assert.Empty(t, carts.Lines(1))
}

func TestCartStorage_ClearAfterCheckout(t *testing.T) {
	carts := storage.NewCartStorage()
	carts.Add(7, models.CartLine{ProductID: 10, Quantity: 2})
	carts.Add(7, models.CartLine{ProductID: 11, Quantity: 1})

	carts.Clear(7)

	assert.Empty(t, carts.Lines(7))
	assert.Equal(t, 0, carts.Quantity(7, 10))
}

// Конкурентные добавления в одну корзину не должны терять инкременты.
func TestCartStorage_ConcurrentAdds(t *testing.T) {
	carts := storage.NewCartStorage()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			carts.Add(1, models.CartLine{ProductID: 10, Quantity: 1, UnitPriceCents: 100})
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, carts.Quantity(1, 10))
}

// Корзины разных покупателей независимы даже под конкурентной нагрузкой.
func TestCartStorage_ConcurrentCustomersIsolated(t *testing.T) {
	carts := storage.NewCartStorage()

	var wg sync.WaitGroup
	for customer := int64(1); customer <= 10; customer++ {
		wg.Add(1)
		go func(c int64) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				carts.Add(c, models.CartLine{ProductID: c, Quantity: 1})
			}
		}(customer)
	}
	wg.Wait()

	for customer := int64(1); customer <= 10; customer++ {
		assert.Equal(t, 20, carts.Quantity(customer, customer))
	}
}
