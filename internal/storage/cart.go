package storage

import (
	"sort"
	"sync"

	"github.com/linemk/farm-market/internal/domain/models"
)

// CartStorage — эфемерное хранилище корзин, ключ — идентификатор покупателя.
// Корзина живёт только в памяти процесса и никогда не попадает в БД:
// резервирование происходит исключительно при оформлении заказа.
type CartStorage interface {
	// Lines возвращает строки корзины, отсортированные по productID.
	Lines(customerID int64) []models.CartLine
	// Quantity возвращает количество товара, уже лежащее в корзине (0, если нет).
	Quantity(customerID, productID int64) int
	// Add добавляет строку или увеличивает количество существующей.
	// Снимки цены и фермера сохраняются от первого добавления.
	Add(customerID int64, line models.CartLine)
	// Remove удаляет строку; отсутствие строки не считается ошибкой.
	Remove(customerID, productID int64)
	Clear(customerID int64)
}

type memCartStorage struct {
	mu    sync.Mutex
	carts map[int64]map[int64]models.CartLine // customerID -> productID -> line
}

func NewCartStorage() CartStorage {
	return &memCartStorage{carts: make(map[int64]map[int64]models.CartLine)}
}

func (s *memCartStorage) Lines(customerID int64) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[customerID]
	lines := make([]models.CartLine, 0, len(cart))
	for _, line := range cart {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (s *memCartStorage) Quantity(customerID, productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.carts[customerID][productID].Quantity
}

func (s *memCartStorage) Add(customerID int64, line models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[customerID]
	if !ok {
		cart = make(map[int64]models.CartLine)
		s.carts[customerID] = cart
	}
	if existing, ok := cart[line.ProductID]; ok {
		existing.Quantity += line.Quantity
		cart[line.ProductID] = existing
		return
	}
	cart[line.ProductID] = line
}

func (s *memCartStorage) Remove(customerID, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts[customerID], productID)
}

func (s *memCartStorage) Clear(customerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, customerID)
}
