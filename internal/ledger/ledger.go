package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dealwatcher/internal/deal"
)

// Store persists ledger entries. The file store is the default; a Postgres
// store is available for deployments that want a shared ledger.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entries []Entry) error
}

// Ledger answers "have we already notified about this deal?" and records new
// findings. The full entry set lives in memory; the store is the durable
// copy, flushed after each cycle that found deals.
type Ledger struct {
	store   Store
	logger  zerolog.Logger
	entries []Entry
	seen    map[string]struct{}
}

// Load reads persisted state. A missing or corrupt store degrades to an
// empty ledger with a warning: losing dedup history only risks a duplicate
// notification, which is preferable to failing startup.
func Load(ctx context.Context, store Store, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger.With().Str("component", "ledger").Logger(),
		seen:   make(map[string]struct{}),
	}

	entries, err := store.Load(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("could not load ledger; starting empty (deals may re-notify)")
		return l
	}

	l.entries = entries
	for _, e := range entries {
		l.seen[e.Key()] = struct{}{}
	}
	l.logger.Debug().Int("entries", len(entries)).Msg("ledger loaded")
	return l
}

// PartitionNew splits candidates into unseen and already-known deals using
// only the dedup key. Pure with respect to ledger state: calling it twice
// without an intervening Record yields identical partitions. A duplicate key
// within the candidate batch is new once; later occurrences are known.
func (l *Ledger) PartitionNew(candidates []deal.Deal) (fresh, known []deal.Deal) {
	inBatch := make(map[string]struct{})
	for _, c := range candidates {
		key := EntryFromDeal(c).Key()
		if _, ok := l.seen[key]; ok {
			known = append(known, c)
			continue
		}
		if _, ok := inBatch[key]; ok {
			known = append(known, c)
			continue
		}
		inBatch[key] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh, known
}

// Record appends the deals to the in-memory index and flushes them to the
// store. The in-memory index is updated even when the flush fails, so the
// running process never re-notifies; the risk after a write failure is a
// duplicate notification on a future restart.
func (l *Ledger) Record(ctx context.Context, deals []deal.Deal) error {
	if len(deals) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(deals))
	for _, d := range deals {
		e := EntryFromDeal(d)
		entries = append(entries, e)
		l.entries = append(l.entries, e)
		l.seen[e.Key()] = struct{}{}
	}

	if err := l.store.Append(ctx, entries); err != nil {
		return fmt.Errorf("persist %d ledger entries: %w", len(entries), err)
	}
	return nil
}

// Entries returns all recorded deals, oldest first.
func (l *Ledger) Entries() []Entry { return l.entries }

// Size returns the number of recorded deals.
func (l *Ledger) Size() int { return len(l.entries) }
