package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dealwatcher/internal/deal"
)

// Notifier delivers a batch of newly found deals over one channel.
// Implementations are never invoked with an empty batch.
type Notifier interface {
	Notify(ctx context.Context, deals []deal.Deal) error
}

// Console prints each deal to local output. Always succeeds.
type Console struct {
	out io.Writer
}

// NewConsole constructs a console notifier; w defaults to stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

// Notify writes one block per deal plus a banner.
func (c *Console) Notify(_ context.Context, deals []deal.Deal) error {
	divider := strings.Repeat("=", 72)
	fmt.Fprintln(c.out, divider)
	fmt.Fprintf(c.out, "ALERT: %d deep discount(s) found at %s\n", len(deals), time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(c.out, divider)

	for i, d := range deals {
		fmt.Fprintf(c.out, "Deal #%d: %s\n", i+1, d.Name)
		fmt.Fprintf(c.out, "  Current Price: $%s\n", d.CurrentPrice.StringFixed(2))
		fmt.Fprintf(c.out, "  Regular Price: $%s\n", d.RegularPrice.StringFixed(2))
		fmt.Fprintf(c.out, "  Discount: %s%%\n", d.DiscountPercent.Mul(hundred).StringFixed(1))
		fmt.Fprintf(c.out, "  You Save: $%s\n", d.Savings.StringFixed(2))
		if d.URL != "" {
			fmt.Fprintf(c.out, "  URL: %s\n", d.URL)
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

// Fanout dispatches to every configured channel independently. A channel
// failure is logged and never propagated: one broken channel must not block
// the others or abort the cycle.
type Fanout struct {
	channels []named
	logger   zerolog.Logger
}

type named struct {
	name     string
	notifier Notifier
}

// NewFanout constructs an empty dispatcher.
func NewFanout(logger zerolog.Logger) *Fanout {
	return &Fanout{logger: logger.With().Str("component", "notify").Logger()}
}

// Add registers a channel under a name used in failure logs.
func (f *Fanout) Add(name string, n Notifier) {
	f.channels = append(f.channels, named{name: name, notifier: n})
}

// Notify fans the batch out to all channels. An empty batch is a no-op.
func (f *Fanout) Notify(ctx context.Context, deals []deal.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	for _, ch := range f.channels {
		if err := ch.notifier.Notify(ctx, deals); err != nil {
			f.logger.Error().Err(err).Str("channel", ch.name).Int("deals", len(deals)).Msg("notification channel failed")
		}
	}
	return nil
}

var (
	_ Notifier = (*Console)(nil)
	_ Notifier = (*Fanout)(nil)
)
