package service_test

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
	"github.com/linemk/farm-market/internal/storage"
	"github.com/stretchr/testify/assert"
)

var (
	userQuery        = regexp.QuoteMeta("FROM users WHERE id = $1")
	productLockQuery = regexp.QuoteMeta("FROM products WHERE id = $1 FOR UPDATE NOWAIT")
	orderLockQuery   = regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE NOWAIT")
	reservedSumQuery = regexp.QuoteMeta("SELECT COALESCE(SUM(quantity), 0) FROM orders")
	decrementQuery   = regexp.QuoteMeta("UPDATE products SET quantity = GREATEST(quantity - $2, 0)")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func userRow(id int64, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "pass_hash", "role", "phone", "address", "registration_date", "is_approved"}).
		AddRow(id, "user", []byte("hash"), string(role), "", "", time.Now(), true)
}

func productRow(id int64, quantity, priceCents int, farmerID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "image", "quantity", "price_cents", "farmer_id", "rating", "created_at"}).
		AddRow(id, "product", "", quantity, priceCents, farmerID, 5, time.Now())
}

func orderRow(id, productID, customerID, farmerID int64, qty int, status models.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "product_id", "customer_id", "farmer_id", "quantity", "total_price_cents", "status", "order_date", "delivery_date"}).
		AddRow(id, productID, customerID, farmerID, qty, qty*200, string(status), time.Now(), nil)
}

func reservedRow(qty int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"sum"}).AddRow(qty)
}

func newCheckoutEnv(t *testing.T) (service.CheckoutService, storage.CartStorage, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	carts := storage.NewCartStorage()
	svc := service.NewCheckoutService(testLogger(), db, carts,
		storage.NewUserRepository(db), storage.NewProductRepository(db), storage.NewOrderRepository(db))
	return svc, carts, mock, func() { db.Close() }
}

func TestCheckout_Success(t *testing.T) {
	svc, carts, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	customerID := int64(2)
	carts.Add(customerID, models.CartLine{ProductID: 10, Quantity: 2, UnitPriceCents: 200, FarmerID: 5})
	carts.Add(customerID, models.CartLine{ProductID: 11, Quantity: 1, UnitPriceCents: 500, FarmerID: 6})

	mock.ExpectQuery(userQuery).WithArgs(customerID).WillReturnRows(userRow(customerID, models.RoleCustomer))
	mock.ExpectBegin()
	// строки блокируются в порядке возрастания productID
	mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectQuery(reservedSumQuery).WithArgs(int64(10)).WillReturnRows(reservedRow(3))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(int64(10), customerID, int64(5), 2, 400, "pending", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectQuery(productLockQuery).WithArgs(int64(11)).WillReturnRows(productRow(11, 1, 500, 6))
	mock.ExpectQuery(reservedSumQuery).WithArgs(int64(11)).WillReturnRows(reservedRow(0))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(int64(11), customerID, int64(6), 1, 500, "pending", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	orderIDs, err := svc.Checkout(context.Background(), customerID)
	assert.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, orderIDs)
	assert.Empty(t, carts.Lines(customerID), "cart must be cleared after a successful checkout")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_InsufficientStockRollsBackEverything(t *testing.T) {
	svc, carts, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	customerID := int64(2)
	carts.Add(customerID, models.CartLine{ProductID: 10, Quantity: 2, UnitPriceCents: 200, FarmerID: 5})
	carts.Add(customerID, models.CartLine{ProductID: 11, Quantity: 1, UnitPriceCents: 500, FarmerID: 6})

	mock.ExpectQuery(userQuery).WithArgs(customerID).WillReturnRows(userRow(customerID, models.RoleCustomer))
	mock.ExpectBegin()
	mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectQuery(reservedSumQuery).WithArgs(int64(10)).WillReturnRows(reservedRow(0))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	// по второй строке резерв съел весь остаток: 1 > 1 - 1
	mock.ExpectQuery(productLockQuery).WithArgs(int64(11)).WillReturnRows(productRow(11, 1, 500, 6))
	mock.ExpectQuery(reservedSumQuery).WithArgs(int64(11)).WillReturnRows(reservedRow(1))
	mock.ExpectRollback()

	orderIDs, err := svc.Checkout(context.Background(), customerID)
	assert.ErrorIs(t, err, service.ErrInsufficientStock)
	assert.Nil(t, orderIDs)
	assert.Len(t, carts.Lines(customerID), 2, "cart survives a failed checkout")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, _, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	mock.ExpectQuery(userQuery).WithArgs(int64(2)).WillReturnRows(userRow(2, models.RoleCustomer))

	_, err := svc.Checkout(context.Background(), 2)
	assert.ErrorIs(t, err, service.ErrEmptyCart)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_ForbiddenForFarmer(t *testing.T) {
	svc, _, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	mock.ExpectQuery(userQuery).WithArgs(int64(5)).WillReturnRows(userRow(5, models.RoleFarmer))

	_, err := svc.Checkout(context.Background(), 5)
	assert.ErrorIs(t, err, service.ErrForbidden)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Конфликт блокировки на первой попытке не фатален: транзакция
// повторяется один раз и успешно завершается.
func TestCheckout_RetriesOnceOnLockConflict(t *testing.T) {
	svc, carts, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	customerID := int64(2)
	carts.Add(customerID, models.CartLine{ProductID: 10, Quantity: 1, UnitPriceCents: 200, FarmerID: 5})

	mock.ExpectQuery(userQuery).WithArgs(customerID).WillReturnRows(userRow(customerID, models.RoleCustomer))

	// первая попытка упирается в чужую блокировку
	mock.ExpectBegin()
	mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).WillReturnError(&pq.Error{Code: "55P03"})
	mock.ExpectRollback()

	// вторая попытка проходит
	mock.ExpectBegin()
	mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectQuery(reservedSumQuery).WithArgs(int64(10)).WillReturnRows(reservedRow(0))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectCommit()

	orderIDs, err := svc.Checkout(context.Background(), customerID)
	assert.NoError(t, err)
	assert.Equal(t, []int64{100}, orderIDs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_LockConflictTwiceReturnsConflict(t *testing.T) {
	svc, carts, mock, closeDB := newCheckoutEnv(t)
	defer closeDB()

	customerID := int64(2)
	carts.Add(customerID, models.CartLine{ProductID: 10, Quantity: 1, UnitPriceCents: 200, FarmerID: 5})

	mock.ExpectQuery(userQuery).WithArgs(customerID).WillReturnRows(userRow(customerID, models.RoleCustomer))
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).WillReturnError(&pq.Error{Code: "55P03"})
		mock.ExpectRollback()
	}

	_, err := svc.Checkout(context.Background(), customerID)
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Len(t, carts.Lines(customerID), 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func newOrderEnv(t *testing.T) (service.OrderService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	svc := service.NewOrderService(testLogger(), db,
		storage.NewUserRepository(db), storage.NewProductRepository(db), storage.NewOrderRepository(db))
	return svc, mock, func() { db.Close() }
}

func TestUpdateStatus_AcceptedToDelivered(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(orderLockQuery).WithArgs(int64(77)).
		WillReturnRows(orderRow(77, 10, 2, 5, 2, models.StatusAccepted))
	mock.ExpectQuery(productLockQuery).WithArgs(int64(10)).
		WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectExec(decrementQuery).WithArgs(int64(10), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(77), "delivered", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.UpdateStatus(context.Background(), 77, 5, models.StatusDelivered, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)
	assert.NotNil(t, updated.DeliveryDate, "delivery date defaults to now when omitted")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Повтор delivered -> delivered не трогает ни заказ, ни остаток товара.
func TestUpdateStatus_DeliveredAgainIsNoop(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(orderLockQuery).WithArgs(int64(77)).
		WillReturnRows(orderRow(77, 10, 2, 5, 2, models.StatusDelivered))
	mock.ExpectCommit()

	updated, err := svc.UpdateStatus(context.Background(), 77, 5, models.StatusDelivered, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_ForbiddenForOtherFarmer(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(orderLockQuery).WithArgs(int64(77)).
		WillReturnRows(orderRow(77, 10, 2, 5, 2, models.StatusPending))
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), 77, 6, models.StatusAccepted, nil)
	assert.ErrorIs(t, err, service.ErrForbidden)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(orderLockQuery).WithArgs(int64(77)).
		WillReturnRows(orderRow(77, 10, 2, 5, 2, models.StatusPending))
	mock.ExpectRollback()

	// pending -> delivered минует обязательное подтверждение фермером
	_, err := svc.UpdateStatus(context.Background(), 77, 5, models.StatusDelivered, nil)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	_, err := svc.UpdateStatus(context.Background(), 77, 5, models.OrderStatus("shipped"), nil)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_RejectedClearsNothing(t *testing.T) {
	svc, mock, closeDB := newOrderEnv(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(orderLockQuery).WithArgs(int64(77)).
		WillReturnRows(orderRow(77, 10, 2, 5, 2, models.StatusPending))
	// отклонение не списывает остаток, обновляется только статус
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(77), "rejected", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.UpdateStatus(context.Background(), 77, 5, models.StatusRejected, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
	assert.Nil(t, updated.DeliveryDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func newCartEnv(t *testing.T) (service.CartService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	svc := service.NewCartService(testLogger(), storage.NewCartStorage(),
		storage.NewUserRepository(db), storage.NewProductRepository(db))
	return svc, mock, func() { db.Close() }
}

const productGetQuery = "SELECT id, name, image, quantity, price_cents, farmer_id, rating, created_at FROM products WHERE id = \\$1$"

func TestAddToCart_Success(t *testing.T) {
	svc, mock, closeDB := newCartEnv(t)
	defer closeDB()

	mock.ExpectQuery(userQuery).WithArgs(int64(2)).WillReturnRows(userRow(2, models.RoleCustomer))
	mock.ExpectQuery(productGetQuery).WithArgs(int64(10)).WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.quantity - COALESCE(SUM(o.quantity), 0)")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}).AddRow(7))

	view, err := svc.AddToCart(context.Background(), 2, 10, 3)
	assert.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, 200, view.Lines[0].UnitPriceCents)
	assert.Equal(t, 600, view.TotalCents)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_InsufficientStock(t *testing.T) {
	svc, mock, closeDB := newCartEnv(t)
	defer closeDB()

	mock.ExpectQuery(userQuery).WithArgs(int64(2)).WillReturnRows(userRow(2, models.RoleCustomer))
	mock.ExpectQuery(productGetQuery).WithArgs(int64(10)).WillReturnRows(productRow(10, 10, 200, 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.quantity - COALESCE(SUM(o.quantity), 0)")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}).AddRow(2))

	_, err := svc.AddToCart(context.Background(), 2, 10, 3)
	assert.ErrorIs(t, err, service.ErrInsufficientStock)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_ForbiddenForFarmer(t *testing.T) {
	svc, mock, closeDB := newCartEnv(t)
	defer closeDB()

	mock.ExpectQuery(userQuery).WithArgs(int64(5)).WillReturnRows(userRow(5, models.RoleFarmer))

	_, err := svc.AddToCart(context.Background(), 5, 10, 1)
	assert.ErrorIs(t, err, service.ErrForbidden)

	assert.NoError(t, mock.ExpectationsWereMet())
}
