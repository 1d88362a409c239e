package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/config"
	"dealwatcher/internal/deal"
	"dealwatcher/internal/fetcher"
	"dealwatcher/internal/ledger"
	"dealwatcher/internal/notify"
	"dealwatcher/internal/scheduler"
)

// Service orchestrates one check cycle: fetch each category, classify
// deals, dedup against the ledger, notify the new ones, record them.
type Service struct {
	scheduler *scheduler.Scheduler
	source    fetcher.ProductFetcher
	ledger    *ledger.Ledger
	notifier  notify.Notifier
	logger    zerolog.Logger

	threshold      decimal.Decimal
	categories     []string
	maxPerCategory int
	cycles         int
}

// New constructs the deal-watching service.
func New(cfg *config.Config, sched *scheduler.Scheduler, source fetcher.ProductFetcher, ldg *ledger.Ledger, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:      sched,
		source:         source,
		ledger:         ldg,
		notifier:       notifier,
		logger:         logger.With().Str("component", "service").Logger(),
		threshold:      decimal.NewFromFloat(cfg.Discount.Threshold),
		categories:     cfg.Source.Categories,
		maxPerCategory: cfg.Source.MaxPerCategory,
	}
}

// Run begins the repeating check loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

// RunOnce executes exactly one cycle and returns.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.RunCycle(ctx, time.Now().UTC())
}

// RunCycle executes a single fetch → classify → dedup → notify → record
// pass across all configured categories. A transient failure in one category
// yields zero products there and never blocks the others; only a permanent
// (configuration-class) failure aborts.
func (s *Service) RunCycle(ctx context.Context, now time.Time) error {
	s.cycles++
	s.logger.Info().Int("cycle", s.cycles).Strs("categories", s.categories).Msg("starting check cycle")

	var products []deal.Product
	failedCategories := 0
	for _, category := range s.categories {
		fetched, err := s.source.Fetch(ctx, category, s.maxPerCategory)
		if err != nil {
			if fetcher.IsPermanent(err) {
				return fmt.Errorf("category %q: %w", category, err)
			}
			failedCategories++
			s.logger.Error().Err(err).Str("category", category).Msg("category fetch failed; treating as zero products this cycle")
			continue
		}
		s.logger.Info().Str("category", category).Int("products", len(fetched)).Msg("category fetched")
		products = append(products, fetched...)
	}

	candidates := deal.ClassifyAll(products, s.threshold, now)
	fresh, known := s.ledger.PartitionNew(candidates)

	if len(fresh) > 0 {
		// Notify before recording: a persist failure must not cost the
		// operator the alert.
		if err := s.notifier.Notify(ctx, fresh); err != nil {
			s.logger.Error().Err(err).Msg("notification dispatch failed")
		}
		if err := s.ledger.Record(ctx, fresh); err != nil {
			s.logger.Error().Err(err).Msg("ledger write failed; deals may re-notify after a restart")
		}
	}

	s.logger.Info().
		Int("cycle", s.cycles).
		Int("categories", len(s.categories)).
		Int("failed_categories", failedCategories).
		Int("products", len(products)).
		Int("deals", len(candidates)).
		Int("new", len(fresh)).
		Int("known", len(known)).
		Msg("cycle complete")

	return nil
}
