package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dealwatcher/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

const defaultExportMaxPoints = 10000

// Export renders recorded deal history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = defaultExportMaxPoints
	}

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

	entries = filterWindow(entries, opts.From, opts.To)
	if len(entries) == 0 {
		a.Logger.Info().Msg("no recorded deals in export window")
		return nil
	}

	downsampled := downsampleEntries(entries, opts.MaxPoints)
	a.Logger.Info().Int("total", len(entries)).Int("exported", len(downsampled)).Msg("exporting recorded deals")

	if opts.CSVPath != "" {
		if err := writeEntriesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEntriesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func filterWindow(entries []ledger.Entry, from, to *time.Time) []ledger.Entry {
	if from == nil && to == nil {
		return entries
	}
	filtered := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if from != nil && e.FoundAt.Before(*from) {
			continue
		}
		if to != nil && !e.FoundAt.Before(*to) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func downsampleEntries(entries []ledger.Entry, max int) []ledger.Entry {
	if max <= 0 || len(entries) <= max {
		return entries
	}

	result := make([]ledger.Entry, 0, max)
	step := float64(len(entries)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(entries) {
			idx = len(entries) - 1
		}
		result = append(result, entries[idx])
	}
	return result
}

func writeEntriesCSV(path string, entries []ledger.Entry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"found_at", "sku", "name", "current_price", "regular_price", "discount_percent", "savings", "url"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, e := range entries {
		record := []string{
			e.FoundAt.Format(time.RFC3339),
			e.SKU,
			e.Name,
			e.CurrentPrice.String(),
			e.RegularPrice.String(),
			e.DiscountPercent.String(),
			e.Savings.String(),
			e.URL,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEntriesPNG(path string, entries []ledger.Entry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(entries))
	discount := make([]float64, len(entries))
	savings := make([]float64, len(entries))

	for i, e := range entries {
		x[i] = e.FoundAt
		discount[i] = e.DiscountPercent.Mul(hundred).InexactFloat64()
		savings[i] = e.Savings.InexactFloat64()
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Discount (%)",
			ValueFormatter: formatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Savings ($)",
			ValueFormatter: formatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Discount %",
				XValues: x,
				YValues: discount,
			},
			chart.TimeSeries{
				Name:    "Savings",
				XValues: x,
				YValues: savings,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
