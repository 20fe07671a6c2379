package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/petshop-storefront/internal/domain/checkout"
)

const insertDispatchSQL = `INSERT INTO dispatched_orders
	(id, visitor, product, unit_price, quantity, payment_method, total, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var _ checkout.Recorder = (*OrderRecorder)(nil)

// OrderRecorder appends dispatched orders to the audit trail.
type OrderRecorder struct {
	pool *pgxpool.Pool
}

// NewOrderRecorder returns an OrderRecorder using pool.
func NewOrderRecorder(pool *pgxpool.Pool) *OrderRecorder {
	return &OrderRecorder{pool: pool}
}

// Record implements checkout.Recorder.
func (r *OrderRecorder) Record(ctx context.Context, rec checkout.Record) error {
	_, err := r.pool.Exec(ctx, insertDispatchSQL,
		rec.ID, rec.Visitor, string(rec.Product), rec.UnitPrice,
		rec.Quantity, rec.PaymentMethod, rec.Total, rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert dispatched order %s", rec.ID)
	}
	return nil
}
