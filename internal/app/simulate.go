package app

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/deal"
	"dealwatcher/internal/fetcher"
	"dealwatcher/internal/ledger"
	"dealwatcher/internal/service"
)

// SimulateOptions describe the synthetic listing fed through the pipeline.
type SimulateOptions struct {
	SKU          string
	Name         string
	CurrentPrice decimal.Decimal
	RegularPrice decimal.Decimal
}

// Simulate runs one cycle against a single synthetic product. The real
// notification channels fire, the real ledger does not: channel smoke tests
// must not pollute dedup history.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	source := &staticFetcher{product: deal.Product{
		SKU:          opts.SKU,
		Name:         opts.Name,
		CurrentPrice: opts.CurrentPrice,
		RegularPrice: opts.RegularPrice,
		URL:          "https://example.com/simulated",
	}}

	ldg := ledger.Load(ctx, memStore{}, zerolog.Nop())
	svc := service.New(a.Config, nil, source, ldg, a.newNotifier(), a.Logger)
	return svc.RunOnce(ctx)
}

type staticFetcher struct {
	product deal.Product
}

func (s *staticFetcher) Fetch(ctx context.Context, category string, maxResults int) ([]deal.Product, error) {
	return []deal.Product{s.product}, nil
}

type memStore struct{}

func (memStore) Load(context.Context) ([]ledger.Entry, error) { return nil, nil }
func (memStore) Append(context.Context, []ledger.Entry) error { return nil }

var (
	_ fetcher.ProductFetcher = (*staticFetcher)(nil)
	_ ledger.Store           = memStore{}
)
