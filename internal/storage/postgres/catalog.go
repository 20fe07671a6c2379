package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

const (
	listPricesSQL = `SELECT name, price, stock FROM catalog_prices`

	upsertPriceSQL = `INSERT INTO catalog_prices (name, price, stock, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = EXCLUDED.updated_at`
)

var _ catalog.Source = (*CatalogSource)(nil)

// CatalogSource reads live pricing from the catalog_prices table.
type CatalogSource struct {
	pool *pgxpool.Pool
}

// NewCatalogSource returns a CatalogSource using pool.
func NewCatalogSource(pool *pgxpool.Pool) *CatalogSource {
	return &CatalogSource{pool: pool}
}

// Fetch returns every row as a quote. Rows for unknown names are returned
// too; the catalog merge ignores them.
func (s *CatalogSource) Fetch(ctx context.Context) (catalog.Pricing, error) {
	rows, err := s.pool.Query(ctx, listPricesSQL)
	if err != nil {
		return nil, &catalog.FetchError{Source: "postgres", Err: err}
	}

	pricing := make(catalog.Pricing)
	var (
		name  string
		price decimal.NullDecimal
		stock *int64
	)
	_, err = pgx.ForEachRow(rows, []any{&name, &price, &stock}, func() error {
		var q catalog.Quote
		if price.Valid {
			p := price.Decimal
			q.Price = &p
		}
		if stock != nil {
			v := *stock
			q.Stock = &v
		}
		pricing[catalog.ProductName(name)] = q
		return nil
	})
	if err != nil {
		return nil, &catalog.FetchError{Source: "postgres", Err: err}
	}
	return pricing, nil
}

// Upsert writes pricing in one transaction.
func (s *CatalogSource) Upsert(ctx context.Context, pricing catalog.Pricing) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for name, q := range pricing {
			var price decimal.NullDecimal
			if q.Price != nil {
				price = decimal.NewNullDecimal(*q.Price)
			}
			batch.Queue(upsertPriceSQL, string(name), price, q.Stock)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert prices")
		}
		return nil
	})
}
