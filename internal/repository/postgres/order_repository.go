package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/domain/order"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"amount":     "amount",
	"status":     "status",
}

// OrderRepository implements order.Repository using PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const orderColumns = `id, amount, customer_phone, status, paypack_ref, created_at, updated_at, completed_at`

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO orders (id, amount, customer_phone, status, paypack_ref, created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.Amount, o.CustomerPhone, string(o.Status), o.PaypackRef, o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicatePaypackRef
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetByPaypackRef retrieves an order by its gateway reference.
func (r *OrderRepository) GetByPaypackRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE paypack_ref = $1`, ref))
}

// AttachRef assigns the gateway reference and moves the order to PROCESSING.
// The WHERE clause doubles as the concurrency guard: only an order still in
// PENDING can take the transition, so two racing initiations cannot both win.
func (r *OrderRepository) AttachRef(ctx context.Context, id uuid.UUID, ref string) (*order.Order, error) {
	row := r.db(ctx).QueryRow(ctx,
		`UPDATE orders
		 SET paypack_ref = $2, status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4 AND paypack_ref IS NULL
		 RETURNING `+orderColumns,
		id, ref, string(order.StatusProcessing), string(order.StatusPending),
	)
	o, err := r.scanOrder(row)
	if err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			return nil, domainErrors.ErrInvalidStateTransition
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrDuplicatePaypackRef
		}
		return nil, err
	}
	return o, nil
}

// UpdateStatusFrom transitions the order between the given statuses as a
// single conditional update.
func (r *OrderRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next order.Status) (*order.Order, error) {
	completedAt := "NULL"
	if next == order.StatusCompleted || next == order.StatusFailed {
		completedAt = "NOW()"
	}
	row := r.db(ctx).QueryRow(ctx,
		`UPDATE orders
		 SET status = $3, updated_at = NOW(), completed_at = `+completedAt+`
		 WHERE id = $1 AND status = $2
		 RETURNING `+orderColumns,
		id, string(expected), string(next),
	)
	o, err := r.scanOrder(row)
	if err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			return nil, domainErrors.ErrInvalidStateTransition
		}
		return nil, err
	}
	return o, nil
}

// List lists orders with optional filters.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}

	// Strict whitelist for sort column
	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// AddEvent inserts an order event.
func (r *OrderRepository) AddEvent(ctx context.Context, event *order.Event) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO order_events (id, order_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		event.ID, event.OrderID, event.EventType, data,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// GetEvents retrieves events for an order.
func (r *OrderRepository) GetEvents(ctx context.Context, orderID uuid.UUID) ([]*order.Event, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, event_type, event_data, created_at
		 FROM order_events WHERE order_id = $1 ORDER BY created_at ASC`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	var events []*order.Event
	for rows.Next() {
		e := &order.Event{}
		var data []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- scanning helpers ---

// scanOrder scans an order from any source implementing the scanner interface.
func (r *OrderRepository) scanOrder(s scanner) (*order.Order, error) {
	o := &order.Order{}
	var status string
	err := s.Scan(
		&o.ID, &o.Amount, &o.CustomerPhone, &status, &o.PaypackRef,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = order.Status(status)
	return o, nil
}
