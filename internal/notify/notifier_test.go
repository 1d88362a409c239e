package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"dealwatcher/internal/deal"
)

func sampleDeals() []deal.Deal {
	p := deal.Product{
		SKU:          "6534009",
		Name:         "Example Laptop",
		CurrentPrice: decimal.NewFromFloat(349.99),
		RegularPrice: decimal.NewFromFloat(999.99),
		URL:          "https://retailer.example/6534009.p",
	}
	d, ok := deal.Classify(p, decimal.NewFromFloat(0.35), time.Now())
	if !ok {
		panic("sample deal must qualify")
	}
	return []deal.Deal{d}
}

func TestConsoleNotifyWritesDealBlock(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	if err := c.Notify(context.Background(), sampleDeals()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Example Laptop", "$349.99", "$999.99", "65.0%", "$650.00", "https://retailer.example/6534009.p"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, deals []deal.Deal) error {
	r.calls++
	return r.err
}

func TestFanoutIsolatesChannelFailures(t *testing.T) {
	broken := &recordingNotifier{err: errors.New("smtp down")}
	healthy := &recordingNotifier{}

	f := NewFanout(zerolog.Nop())
	f.Add("email", broken)
	f.Add("console", healthy)

	if err := f.Notify(context.Background(), sampleDeals()); err != nil {
		t.Fatalf("fanout must swallow channel failures, got %v", err)
	}
	if broken.calls != 1 || healthy.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", broken.calls, healthy.calls)
	}
}

func TestFanoutSkipsEmptyBatch(t *testing.T) {
	ch := &recordingNotifier{}
	f := NewFanout(zerolog.Nop())
	f.Add("console", ch)

	if err := f.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if ch.calls != 0 {
		t.Fatalf("empty batch must not reach channels, calls = %d", ch.calls)
	}
}

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func TestEmailNotifySendsRenderedMessage(t *testing.T) {
	sender := &captureSender{}
	e := NewEmail(EmailOptions{Host: "smtp.example.com", From: "bot@example.com", To: "me@example.com"}, zerolog.Nop())
	e.sender = sender

	if err := e.Notify(context.Background(), sampleDeals()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}

	msg := sender.messages[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "me@example.com" {
		t.Fatalf("To = %v", got)
	}
	if got := msg.GetHeader("Subject"); len(got) != 1 || !strings.Contains(got[0], "1 deal") {
		t.Fatalf("Subject = %v", got)
	}
}

func TestRenderEmailBodyIncludesDealFields(t *testing.T) {
	body, err := renderEmailBody(sampleDeals())
	if err != nil {
		t.Fatalf("renderEmailBody: %v", err)
	}
	for _, want := range []string{"Example Laptop", "349.99", "999.99", "65.0% OFF", "650.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("email body missing %q", want)
		}
	}
}

func TestEmailNotifyPropagatesSendFailure(t *testing.T) {
	e := NewEmail(EmailOptions{Host: "smtp.example.com", From: "bot@example.com", To: "me@example.com"}, zerolog.Nop())
	e.sender = &captureSender{err: errors.New("connection refused")}

	if err := e.Notify(context.Background(), sampleDeals()); err == nil {
		t.Fatal("send failure must surface to the dispatcher")
	}
}

func TestEmailNotifyRequiresRecipients(t *testing.T) {
	e := NewEmail(EmailOptions{Host: "smtp.example.com"}, zerolog.Nop())
	e.sender = &captureSender{}

	if err := e.Notify(context.Background(), sampleDeals()); err == nil {
		t.Fatal("missing addresses must error")
	}
}

func TestRenderEmailBodyEscapesHTML(t *testing.T) {
	deals := sampleDeals()
	deals[0].Name = `<script>alert("x")</script>`

	body, err := renderEmailBody(deals)
	if err != nil {
		t.Fatalf("renderEmailBody: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("deal name must be escaped")
	}
}
