package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow/internal/domain"
)

const uniqueViolation = "23505"

type OrdersPG struct {
	pool *pgxpool.Pool
}

func NewOrdersPG(pool *pgxpool.Pool) *OrdersPG {
	return &OrdersPG{pool: pool}
}

func (r *OrdersPG) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (order_id, restaurant_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, o.ID, o.RestaurantName, o.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ConflictError{OrderID: o.ID}
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrdersPG) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, restaurant_name, status, created_at, updated_at
		FROM orders WHERE order_id = $1
	`, orderID).Scan(&o.ID, &o.RestaurantName, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return &o, nil
}

func (r *OrdersPG) GetStatus(ctx context.Context, orderID string) (domain.Status, error) {
	var s domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE order_id = $1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select order status: %w", err)
	}
	return s, nil
}

// CompareAndSetStatus is the single arbitration point for concurrent
// resolution attempts: the UPDATE commits only while the stored status
// still equals expected, and RowsAffected tells the caller whether it won.
func (r *OrdersPG) CompareAndSetStatus(ctx context.Context, orderID string, expected, next domain.Status) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE order_id = $1 AND status = $2
	`, orderID, expected, next)
	if err != nil {
		return false, fmt.Errorf("cas order status: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
