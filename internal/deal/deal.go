package deal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the normalized listing shape both fetcher variants produce.
type Product struct {
	SKU          string
	Name         string
	CurrentPrice decimal.Decimal
	RegularPrice decimal.Decimal
	URL          string
}

// Valid reports whether the product carries enough data to be evaluated.
// Adapters drop invalid listings instead of passing partial data downstream.
func (p Product) Valid() bool {
	return p.SKU != "" && !p.CurrentPrice.IsNegative() && !p.RegularPrice.IsNegative()
}

// Deal is a product that cleared the discount threshold.
type Deal struct {
	Product
	// DiscountPercent is 1 - current/regular, in [0, 1].
	DiscountPercent decimal.Decimal
	Savings         decimal.Decimal
	FoundAt         time.Time
}

// Classify applies the discount predicate. The threshold is the retained
// price fraction: 0.35 means the current price must be at most 35% of the
// regular price (65%+ off). The boundary is inclusive. Products with a zero
// regular price never qualify.
func Classify(p Product, threshold decimal.Decimal, now time.Time) (Deal, bool) {
	if !p.Valid() || p.RegularPrice.IsZero() {
		return Deal{}, false
	}

	ratio := p.CurrentPrice.Div(p.RegularPrice)
	if ratio.GreaterThan(threshold) {
		return Deal{}, false
	}

	return Deal{
		Product:         p,
		DiscountPercent: decimal.NewFromInt(1).Sub(ratio),
		Savings:         p.RegularPrice.Sub(p.CurrentPrice),
		FoundAt:         now,
	}, true
}

// ClassifyAll filters a fetched batch down to qualifying deals.
func ClassifyAll(products []Product, threshold decimal.Decimal, now time.Time) []Deal {
	var deals []Deal
	for _, p := range products {
		if d, ok := Classify(p, threshold, now); ok {
			deals = append(deals, d)
		}
	}
	return deals
}
