package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the postgres pool was not initialised.
var ErrNotConfigured = errors.New("ledger: pool not configured")

const (
	createLedgerTableSQL = `CREATE TABLE IF NOT EXISTS deal_ledger (
        sku              TEXT PRIMARY KEY,
        name             TEXT NOT NULL,
        current_price    NUMERIC NOT NULL,
        regular_price    NUMERIC NOT NULL,
        discount_percent NUMERIC NOT NULL,
        savings          NUMERIC NOT NULL,
        url              TEXT NOT NULL DEFAULT '',
        found_at         TIMESTAMPTZ NOT NULL
    );`

	insertEntrySQL = `INSERT INTO deal_ledger (
        sku, name, current_price, regular_price, discount_percent, savings, url, found_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (sku) DO NOTHING;`

	listEntriesSQL = `SELECT
        sku, name, current_price, regular_price, discount_percent, savings, url, found_at
    FROM deal_ledger
    ORDER BY found_at;`
)

// PostgresConfig encapsulates ledger database connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PostgresStore keeps the ledger in a shared database table so several
// watcher instances can dedup against the same history.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and ensures the ledger table exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createLedgerTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure ledger table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Load reads every recorded entry, oldest first.
func (s *PostgresStore) Load(ctx context.Context) ([]Entry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEntriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list ledger entries: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var current, regular, discount, savings string
		if err := rows.Scan(&e.SKU, &e.Name, &current, &regular, &discount, &savings, &e.URL, &e.FoundAt); err != nil {
			return nil, err
		}
		if e.CurrentPrice, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("parse current price: %w", err)
		}
		if e.RegularPrice, err = decimal.NewFromString(regular); err != nil {
			return nil, fmt.Errorf("parse regular price: %w", err)
		}
		if e.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("parse discount percent: %w", err)
		}
		if e.Savings, err = decimal.NewFromString(savings); err != nil {
			return nil, fmt.Errorf("parse savings: %w", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// Append inserts the entries, ignoring keys that already exist.
func (s *PostgresStore) Append(ctx context.Context, entries []Entry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if _, execErr := pool.Exec(ctx, insertEntrySQL,
			e.SKU,
			e.Name,
			e.CurrentPrice.String(),
			e.RegularPrice.String(),
			e.DiscountPercent.String(),
			e.Savings.String(),
			e.URL,
			e.FoundAt,
		); execErr != nil {
			return fmt.Errorf("insert ledger entry %s: %w", e.SKU, execErr)
		}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var _ Store = (*PostgresStore)(nil)
