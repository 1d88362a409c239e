package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"dealwatcher/internal/ledger"
)

// Show prints the most recently recorded deals.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openLedgerStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	entries, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no deals recorded")
		return nil
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Found (UTC)\tSKU\tName\tCurrent\tRegular\tOff%\tSavings")

	for _, e := range entries {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.FoundAt.UTC().Format(time.RFC3339),
			e.SKU,
			truncate(e.Name, 48),
			e.CurrentPrice.StringFixed(2),
			e.RegularPrice.StringFixed(2),
			percentOff(e),
			e.Savings.StringFixed(2),
		)
	}

	writer.Flush()
	return nil
}

func percentOff(e ledger.Entry) string {
	return e.DiscountPercent.Mul(hundred).StringFixed(1)
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max-3] + "..."
}
