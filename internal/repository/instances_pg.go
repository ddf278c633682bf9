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

type InstancesPG struct {
	pool *pgxpool.Pool
}

func NewInstancesPG(pool *pgxpool.Pool) *InstancesPG {
	return &InstancesPG{pool: pool}
}

func (r *InstancesPG) Create(ctx context.Context, inst *domain.WorkflowInstance) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workflow_instances
			(order_id, state, continuation_token, deadline, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, inst.OrderID, inst.State, inst.ContinuationToken, inst.Deadline, inst.Attempt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ConflictError{OrderID: inst.OrderID}
		}
		return fmt.Errorf("insert workflow instance: %w", err)
	}
	return nil
}

func (r *InstancesPG) FindByToken(ctx context.Context, token string) (*domain.WorkflowInstance, error) {
	return r.find(ctx, `WHERE continuation_token = $1`, token)
}

func (r *InstancesPG) FindByOrderID(ctx context.Context, orderID string) (*domain.WorkflowInstance, error) {
	return r.find(ctx, `WHERE order_id = $1`, orderID)
}

func (r *InstancesPG) find(ctx context.Context, where, arg string) (*domain.WorkflowInstance, error) {
	var inst domain.WorkflowInstance
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, state, continuation_token, deadline, attempt, created_at, updated_at
		FROM workflow_instances `+where,
		arg,
	).Scan(&inst.OrderID, &inst.State, &inst.ContinuationToken, &inst.Deadline,
		&inst.Attempt, &inst.CreatedAt, &inst.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select workflow instance: %w", err)
	}
	return &inst, nil
}

// SwapState transitions the instance only if it is still in the expected
// state. The AWAITING -> RESOLVING swap invalidates the continuation token
// for any later resolve attempt.
func (r *InstancesPG) SwapState(ctx context.Context, orderID string, from, to domain.WorkflowState) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE workflow_instances SET state = $3, updated_at = now()
		WHERE order_id = $1 AND state = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("cas instance state: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// BumpAttempt increments the notification retry counter and returns the new
// value. Only meaningful while the instance is still awaiting a response.
func (r *InstancesPG) BumpAttempt(ctx context.Context, orderID string) (int, error) {
	var attempt int
	err := r.pool.QueryRow(ctx, `
		UPDATE workflow_instances SET attempt = attempt + 1, updated_at = now()
		WHERE order_id = $1
		RETURNING attempt
	`, orderID).Scan(&attempt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrInstanceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump instance attempt: %w", err)
	}
	return attempt, nil
}
