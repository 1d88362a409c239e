package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"dealwatcher/internal/deal"
)

// Entry is one recorded deal. The on-disk field names are stable; readers
// must ignore fields they do not know.
type Entry struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	RegularPrice    decimal.Decimal `json:"regular_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Savings         decimal.Decimal `json:"savings"`
	URL             string          `json:"url"`
	FoundAt         time.Time       `json:"found_at"`
}

// Key returns the dedup key. Identifier only: a listing notifies once, a
// later deeper discount on the same SKU is suppressed.
func (e Entry) Key() string { return e.SKU }

// EntryFromDeal converts a classified deal into its ledger record.
func EntryFromDeal(d deal.Deal) Entry {
	return Entry{
		SKU:             d.SKU,
		Name:            d.Name,
		CurrentPrice:    d.CurrentPrice,
		RegularPrice:    d.RegularPrice,
		DiscountPercent: d.DiscountPercent,
		Savings:         d.Savings,
		URL:             d.URL,
		FoundAt:         d.FoundAt,
	}
}
