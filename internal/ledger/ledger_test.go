package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/deal"
)

func testDeal(sku string, current, regular string) deal.Deal {
	cur, _ := decimal.NewFromString(current)
	reg, _ := decimal.NewFromString(regular)
	d, ok := deal.Classify(deal.Product{
		SKU:          sku,
		Name:         "Deal " + sku,
		CurrentPrice: cur,
		RegularPrice: reg,
		URL:          "https://retailer.example/" + sku,
	}, decimal.NewFromFloat(0.35), time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	if !ok {
		panic("test deal does not qualify: " + sku)
	}
	return d
}

func TestPartitionNewSplitsKnownAndFresh(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "deals.json"))
	l := Load(context.Background(), store, zerolog.Nop())

	a := testDeal("A1", "100", "400")
	b := testDeal("B2", "50", "300")

	if err := l.Record(context.Background(), []deal.Deal{a}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	fresh, known := l.PartitionNew([]deal.Deal{a, b})
	if len(fresh) != 1 || fresh[0].SKU != "B2" {
		t.Fatalf("fresh = %+v, want only B2", fresh)
	}
	if len(known) != 1 || known[0].SKU != "A1" {
		t.Fatalf("known = %+v, want only A1", known)
	}
}

func TestPartitionNewIsIdempotent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "deals.json"))
	l := Load(context.Background(), store, zerolog.Nop())

	candidates := []deal.Deal{testDeal("A1", "100", "400"), testDeal("B2", "50", "300")}

	fresh1, known1 := l.PartitionNew(candidates)
	fresh2, known2 := l.PartitionNew(candidates)

	if len(fresh1) != len(fresh2) || len(known1) != len(known2) {
		t.Fatalf("partitions differ: (%d,%d) vs (%d,%d)", len(fresh1), len(known1), len(fresh2), len(known2))
	}
	for i := range fresh1 {
		if fresh1[i].SKU != fresh2[i].SKU {
			t.Fatalf("fresh[%d] differs: %s vs %s", i, fresh1[i].SKU, fresh2[i].SKU)
		}
	}
}

func TestPartitionNewDedupsWithinBatch(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "deals.json"))
	l := Load(context.Background(), store, zerolog.Nop())

	dup := testDeal("A1", "100", "400")
	fresh, known := l.PartitionNew([]deal.Deal{dup, dup})
	if len(fresh) != 1 {
		t.Fatalf("fresh = %d, want 1", len(fresh))
	}
	if len(known) != 1 {
		t.Fatalf("known = %d, want 1", len(known))
	}
}

func TestRecordThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.json")
	ctx := context.Background()

	l := Load(ctx, NewFileStore(path), zerolog.Nop())
	recorded := []deal.Deal{testDeal("A1", "100", "400"), testDeal("B2", "50", "300")}
	if err := l.Record(ctx, recorded); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reloaded := Load(ctx, NewFileStore(path), zerolog.Nop())
	if reloaded.Size() != 2 {
		t.Fatalf("reloaded size = %d, want 2", reloaded.Size())
	}

	fresh, known := reloaded.PartitionNew(recorded)
	if len(fresh) != 0 {
		t.Fatalf("previously recorded deals must reload as known, fresh = %+v", fresh)
	}
	if len(known) != 2 {
		t.Fatalf("known = %d, want 2", len(known))
	}

	entries := reloaded.Entries()
	if entries[0].SKU != "A1" || !entries[0].CurrentPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("entry round trip mismatch: %+v", entries[0])
	}
	if entries[0].FoundAt.IsZero() {
		t.Fatal("FoundAt must survive the round trip")
	}
}

func TestRecordAppendsAcrossCycles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.json")
	ctx := context.Background()

	l := Load(ctx, NewFileStore(path), zerolog.Nop())
	if err := l.Record(ctx, []deal.Deal{testDeal("A1", "100", "400")}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, []deal.Deal{testDeal("B2", "50", "300")}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reloaded := Load(ctx, NewFileStore(path), zerolog.Nop())
	if reloaded.Size() != 2 {
		t.Fatalf("size after two appends = %d, want 2", reloaded.Size())
	}
}

func TestLoadMissingFileYieldsEmptyLedger(t *testing.T) {
	l := Load(context.Background(), NewFileStore(filepath.Join(t.TempDir(), "absent.json")), zerolog.Nop())
	if l.Size() != 0 {
		t.Fatalf("size = %d, want 0", l.Size())
	}
}

func TestLoadCorruptFileFailsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Load(context.Background(), NewFileStore(path), zerolog.Nop())
	if l.Size() != 0 {
		t.Fatalf("corrupt file must degrade to empty ledger, size = %d", l.Size())
	}

	// The ledger stays usable after the soft failure.
	if err := l.Record(context.Background(), []deal.Deal{testDeal("A1", "100", "400")}); err != nil {
		t.Fatalf("Record after corrupt load: %v", err)
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.json")
	doc := `{
  "schema": 2,
  "deals": [
    {"sku": "A1", "name": "Old Deal", "current_price": "99.99", "regular_price": "399.99",
     "discount_percent": "0.75", "savings": "300", "url": "", "found_at": "2024-01-01T00:00:00Z",
     "added_by": "older-version"}
  ],
  "last_updated": "2024-01-01T00:00:00Z"
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Load(context.Background(), NewFileStore(path), zerolog.Nop())
	if l.Size() != 1 {
		t.Fatalf("size = %d, want 1", l.Size())
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) ([]Entry, error) { return nil, nil }
func (failingStore) Append(context.Context, []Entry) error {
	return errors.New("disk full")
}

func TestRecordFailureStillMarksDealsKnown(t *testing.T) {
	l := Load(context.Background(), failingStore{}, zerolog.Nop())

	d := testDeal("A1", "100", "400")
	if err := l.Record(context.Background(), []deal.Deal{d}); err == nil {
		t.Fatal("expected persist error")
	}

	fresh, _ := l.PartitionNew([]deal.Deal{d})
	if len(fresh) != 0 {
		t.Fatal("a deal recorded in memory must not re-notify within the process")
	}
}
