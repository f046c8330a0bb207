package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"storefront-service/internal/domain"
)

// --- OrderStorer Implementation ---

const orderColumns = `id, user_id, total_amount, payment_status, order_status, shipping_address, created_at, updated_at`

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o       domain.Order
		address []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus,
		&address, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return domain.Order{}, fmt.Errorf("%w: order %q shipping address: %v", ErrMalformedRow, o.ID, err)
		}
	}
	o.Items = []domain.OrderItem{}
	return o, nil
}

// CreateOrder inserts the order and all of its items in one transaction.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("store: CreateOrder failed to encode address: %w", err)
	}

	var created domain.Order
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO orders (user_id, total_amount, payment_status, order_status, shipping_address)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+orderColumns+`;`,
			order.UserID, order.TotalAmount, string(order.PaymentStatus), string(order.OrderStatus), address)
		o, err := scanOrder(row)
		if err != nil {
			return fmt.Errorf("store: CreateOrder failed to insert order: %w", err)
		}

		for _, item := range order.Items {
			var it domain.OrderItem
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id, order_id, product_id, product_name, quantity, price;`,
				o.ID, item.ProductID, item.ProductName, item.Quantity, item.Price,
			).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price)
			if err != nil {
				return fmt.Errorf("store: CreateOrder failed to insert item %q: %w", item.ProductID, err)
			}
			o.Items = append(o.Items, it)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: GetOrder failed to scan row: %w", err)
	}
	orders := []domain.Order{o}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC;`)
}

// ListRecentOrders returns the newest limit orders.
func (s *PostgresStore) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1;`, limit)
}

// OrderStats counts all orders, the pending ones, and sums their totals.
func (s *PostgresStore) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	var st domain.OrderStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COUNT(*) FILTER (WHERE order_status = $1)
		FROM orders;`, string(domain.OrderPending)).
		Scan(&st.TotalOrders, &st.TotalRevenue, &st.PendingOrders)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("store: OrderStats failed to query: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) listOrders(ctx context.Context, query string, args ...interface{}) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list orders failed to query: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list orders failed to scan row: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list orders iteration error: %w", err)
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with a single query.
func (s *PostgresStore) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id;`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("store: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("store: failed to scan order item: %w", err)
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: order items iteration error: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET order_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2;`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: UpdateOrderStatus failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdateOrderStatus failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// --- Return requests ---

const returnColumns = `id, order_id, user_id, reason, status, created_at, updated_at`

func scanReturn(row scanner) (domain.ReturnRequest, error) {
	var r domain.ReturnRequest
	err := row.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Reason, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *PostgresStore) CreateReturnRequest(ctx context.Context, req *domain.ReturnRequest) (*domain.ReturnRequest, error) {
	r, err := scanReturn(s.db.QueryRowContext(ctx, `
		INSERT INTO return_requests (order_id, user_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+returnColumns+`;`,
		req.OrderID, req.UserID, req.Reason, string(req.Status)))
	if err != nil {
		if uniqueViolation(err, "order_id") {
			return nil, ErrReturnExists
		}
		if foreignKeyViolation(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: CreateReturnRequest failed to scan row: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListReturnRequests(ctx context.Context) ([]domain.ReturnRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+returnColumns+` FROM return_requests ORDER BY created_at DESC;`)
	if err != nil {
		return nil, fmt.Errorf("store: ListReturnRequests failed to query: %w", err)
	}
	defer rows.Close()

	out := []domain.ReturnRequest{}
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListReturnRequests failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListReturnRequests iteration error: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE return_requests SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2;`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: UpdateReturnStatus failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdateReturnStatus failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReturnNotFound
	}
	return nil
}
