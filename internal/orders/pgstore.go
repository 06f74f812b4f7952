package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Create(ctx context.Context, o *Order, events []stock.ChangeEvent) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders(customer, placed_at) VALUES ($1, $2)
		RETURNING id`, o.Customer, o.PlacedAt).Scan(&id); err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines(order_id, line_no, product_id, quantity)
			VALUES ($1, $2, $3, $4)`, id, i+1, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}

	for i, ev := range events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_outbox(message_id, order_id, line_no, product_id, quantity_delta, status)
			VALUES ($1, $2, $3, $4, $5, 'PENDING')`,
			ev.MessageID, id, i+1, ev.ProductID, ev.QuantityDelta); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.ID = id
	for i := range events {
		events[i].OrderID = id
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `SELECT id, customer, placed_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.Customer, &o.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}

	lines, err := s.lines(ctx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Items = lines[id]
	return o, nil
}

func (s *PGStore) List(ctx context.Context) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, customer, placed_at FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	var ids []int64
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Customer, &o.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := s.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = lines[out[i].ID]
	}
	return out, nil
}

func (s *PGStore) lines(ctx context.Context, orderIDs []int64) (map[int64][]OrderLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT order_id, product_id, quantity FROM order_lines
		WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]OrderLine{}
	for rows.Next() {
		var (
			oid int64
			l   OrderLine
		)
		if err := rows.Scan(&oid, &l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out[oid] = append(out[oid], l)
	}
	return out, rows.Err()
}

func (s *PGStore) Pending(ctx context.Context, createdBefore time.Time, limit int) ([]OutboxEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT message_id::text, order_id, product_id, quantity_delta, status, attempts,
		       COALESCE(last_error, ''), created_at
		FROM stock_outbox
		WHERE status='PENDING' AND created_at <= $1
		ORDER BY created_at, order_id, line_no
		LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			e      OutboxEntry
			status string
		)
		if err := rows.Scan(&e.Event.MessageID, &e.Event.OrderID, &e.Event.ProductID, &e.Event.QuantityDelta,
			&status, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = OutboxStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished is a no-op for entries already published, so a racing dispatcher and
// orchestrator cannot fail each other.
func (s *PGStore) MarkPublished(ctx context.Context, messageID string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE stock_outbox SET status='PUBLISHED', published_at=now()
		WHERE message_id=$1 AND status='PENDING'`, messageID)
	return err
}

func (s *PGStore) MarkFailed(ctx context.Context, messageID string, cause error) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE stock_outbox SET attempts = attempts + 1, last_error=$2
		WHERE message_id=$1 AND status='PENDING'`, messageID, cause.Error())
	return err
}
