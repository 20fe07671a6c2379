package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

func quote(price, stock int64) catalog.Quote {
	p := decimal.NewFromInt(price)
	return catalog.Quote{Price: &p, Stock: &stock}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name        string
		feeds       []catalog.Pricing
		wantPrices  map[catalog.ProductName]int64
		wantSkipped []catalog.ProductName
	}{
		{
			name:       "no feeds",
			wantPrices: map[catalog.ProductName]int64{},
		},
		{
			name: "single feed",
			feeds: []catalog.Pricing{
				{"Kitsune": quote(50000, 3), "Trex": quote(10, 1)},
			},
			wantPrices: map[catalog.ProductName]int64{"Kitsune": 50000, "Trex": 10},
		},
		{
			name: "later feed wins",
			feeds: []catalog.Pricing{
				{"Kitsune": quote(50000, 3), "Trex": quote(10, 1)},
				{"Kitsune": quote(75000, 1)},
			},
			wantPrices: map[catalog.ProductName]int64{"Kitsune": 75000, "Trex": 10},
		},
		{
			name: "unknown names dropped once",
			feeds: []catalog.Pricing{
				{"Kitsune": quote(50000, 3), "Unicorn": quote(1, 1), "Bigfoot": quote(2, 2)},
				{"Unicorn": quote(5, 5)},
			},
			wantPrices:  map[catalog.ProductName]int64{"Kitsune": 50000},
			wantSkipped: []catalog.ProductName{"Bigfoot", "Unicorn"},
		},
		{
			name: "names are case sensitive",
			feeds: []catalog.Pricing{
				{"kitsune": quote(1, 1)},
			},
			wantPrices:  map[catalog.ProductName]int64{},
			wantSkipped: []catalog.ProductName{"kitsune"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, skipped := merge(tt.feeds)

			require.Len(t, merged, len(tt.wantPrices))
			for name, want := range tt.wantPrices {
				q, ok := merged[name]
				require.True(t, ok, "missing %s", name)
				require.NotNil(t, q.Price)
				assert.True(t, decimal.NewFromInt(want).Equal(*q.Price), "%s price", name)
			}
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}
