package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

const (
	orderID = "0b2f8d6e-8c5e-4d0e-9a57-2c3f7d0e1a11"
	userID  = "7c1e4a2b-1111-4a55-9c55-1f3d4bca0b01"
)

var orderColumnNames = []string{"id", "user_id", "total_amount", "payment_status", "order_status", "shipping_address", "created_at", "updated_at"}
var itemColumnNames = []string{"id", "order_id", "product_id", "product_name", "quantity", "price"}

var testAddress = domain.ShippingAddress{
	FullName: "Asha Rao",
	Phone:    "9876543210",
	Address:  "12 MG Road, Indiranagar",
	City:     "Bengaluru",
	State:    "Karnataka",
	Pincode:  "560038",
}

func TestPostgresStore_CreateOrder(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	address, err := json.Marshal(testAddress)
	require.NoError(t, err)

	order := &domain.Order{
		UserID:          userID,
		TotalAmount:     decimal.NewFromInt(1598),
		PaymentStatus:   domain.PaymentPending,
		OrderStatus:     domain.OrderPending,
		ShippingAddress: testAddress,
		Items: []domain.OrderItem{
			{ProductID: shirtID, ProductName: "Linen Shirt", Quantity: 2, Price: decimal.NewFromInt(799)},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders (user_id, total_amount, payment_status, order_status, shipping_address)`)).
		WithArgs(userID, order.TotalAmount, "pending", "pending", address).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, "1598", "pending", "pending", address, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO order_items (order_id, product_id, product_name, quantity, price)`)).
		WithArgs(orderID, shirtID, "Linen Shirt", 2, decimal.NewFromInt(799)).
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("item-1", orderID, shirtID, "Linen Shirt", 2, "799"))
	mock.ExpectCommit()

	created, err := store.CreateOrder(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, orderID, created.ID)
	assert.Equal(t, testAddress, created.ShippingAddress)
	require.Len(t, created.Items, 1)
	assert.Equal(t, orderID, created.Items[0].OrderID)
	assert.True(t, decimal.NewFromInt(1598).Equal(created.TotalAmount))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateOrder_ItemFailureRollsBack(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	order := &domain.Order{
		UserID:        userID,
		TotalAmount:   decimal.NewFromInt(10),
		PaymentStatus: domain.PaymentPending,
		OrderStatus:   domain.OrderPending,
		Items:         []domain.OrderItem{{ProductID: shirtID, ProductName: "x", Quantity: 1, Price: decimal.NewFromInt(10)}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, "10", "pending", "pending", []byte(`{}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO order_items`)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	created, err := store.CreateOrder(context.Background(), order)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrder(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	address, _ := json.Marshal(testAddress)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1;`)).WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, "1598", "pending", "confirmed", address, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).WithArgs(pq.Array([]string{orderID})).
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("i1", orderID, shirtID, "Linen Shirt", 1, "799").
			AddRow("i2", orderID, kurtaID, "Kurta", 1, "799"))

	order, err := store.GetOrder(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, order.OrderStatus)
	assert.Equal(t, "Bengaluru", order.ShippingAddress.City)
	assert.Len(t, order.Items, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrder_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1;`)).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	order, err := store.GetOrder(context.Background(), "missing")

	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.Nil(t, order)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOrdersByUser_GroupsItems(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	other := "1d9c2c1e-2222-4a55-9c55-1f3d4bca0b02"
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE user_id = $1 ORDER BY created_at DESC;`)).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, "799", "pending", "shipped", []byte(`{}`), now, now).
			AddRow(other, userID, "450", "paid", "delivered", []byte(`{}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).WithArgs(pq.Array([]string{orderID, other})).
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("i1", orderID, shirtID, "Linen Shirt", 1, "799").
			AddRow("i2", other, kurtaID, "Kurta", 1, "450"))

	orders, err := store.ListOrdersByUser(context.Background(), userID)

	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "Linen Shirt", orders[0].Items[0].ProductName)
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, domain.PaymentPaid, orders[1].PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOrders_Empty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders ORDER BY created_at DESC;`)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	orders, err := store.ListOrders(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrderStatus(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`UPDATE orders SET order_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2;`)
	mock.ExpectExec(query).WithArgs("shipped", orderID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("shipped", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.UpdateOrderStatus(context.Background(), orderID, domain.OrderShipped))
	err := store.UpdateOrderStatus(context.Background(), "missing", domain.OrderShipped)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateReturnRequest(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	req := &domain.ReturnRequest{OrderID: orderID, UserID: userID, Reason: "Size too small for me", Status: domain.ReturnPending}
	query := regexp.QuoteMeta(`INSERT INTO return_requests (order_id, user_id, reason, status)`)

	mock.ExpectQuery(query).WithArgs(orderID, userID, req.Reason, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "user_id", "reason", "status", "created_at", "updated_at"}).
			AddRow("r1", orderID, userID, req.Reason, "pending", now, now))
	created, err := store.CreateReturnRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "r1", created.ID)
	assert.Equal(t, domain.ReturnPending, created.Status)

	mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23505", Constraint: "return_requests_order_id_key"})
	_, err = store.CreateReturnRequest(context.Background(), req)
	assert.True(t, errors.Is(err, ErrReturnExists))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateReturnStatus_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE return_requests SET status = $1`)).
		WithArgs("approved", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateReturnStatus(context.Background(), "missing", domain.ReturnApproved)

	assert.True(t, errors.Is(err, ErrReturnNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_OrderStats(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE order_status = $1)`)).WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "pending"}).AddRow(7, "10450.50", 2))

	stats, err := store.OrderStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalOrders)
	assert.Equal(t, 2, stats.PendingOrders)
	assert.True(t, decimal.RequireFromString("10450.50").Equal(stats.TotalRevenue))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_OrderStats_QueryError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders;`)).WillReturnError(sql.ErrConnDone)

	_, err := store.OrderStats(context.Background())

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecentOrders(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders ORDER BY created_at DESC LIMIT $1;`)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, "799", "pending", "pending", []byte(`{}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).WithArgs(pq.Array([]string{orderID})).
		WillReturnRows(sqlmock.NewRows(itemColumnNames).
			AddRow("i1", orderID, shirtID, "Linen Shirt", 1, "799"))

	orders, err := store.ListRecentOrders(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderPending, orders[0].OrderStatus)
	require.Len(t, orders[0].Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
