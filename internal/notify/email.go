package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"dealwatcher/internal/deal"
)

var hundred = decimal.NewFromInt(100)

// EmailOptions parameterise the SMTP channel.
type EmailOptions struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
}

// Sender abstracts gomail's dial-and-send so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email delivers deal batches as an HTML email over authenticated SMTP.
type Email struct {
	opts   EmailOptions
	sender Sender
	logger zerolog.Logger
}

// NewEmail constructs the email notifier.
func NewEmail(opts EmailOptions, logger zerolog.Logger) *Email {
	if opts.Port <= 0 {
		opts.Port = 587
	}
	return &Email{
		opts:   opts,
		sender: gomail.NewDialer(opts.Host, opts.Port, opts.From, opts.Password),
		logger: logger.With().Str("component", "notify_email").Logger(),
	}
}

// Notify renders and sends one message covering the whole batch.
func (e *Email) Notify(_ context.Context, deals []deal.Deal) error {
	if e.opts.From == "" || e.opts.To == "" {
		return fmt.Errorf("email sender/recipient not configured")
	}

	body, err := renderEmailBody(deals)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.opts.From)
	m.SetHeader("To", e.opts.To)
	m.SetHeader("Subject", fmt.Sprintf("%d deal(s) found - deep discounts!", len(deals)))
	m.SetBody("text/html", body)

	if err := e.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	e.logger.Info().Int("deals", len(deals)).Str("to", e.opts.To).Msg("email notification sent")
	return nil
}

type emailDeal struct {
	Index           int
	Name            string
	CurrentPrice    string
	RegularPrice    string
	DiscountPercent string
	Savings         string
	URL             string
}

type emailData struct {
	Count int
	Time  string
	Deals []emailDeal
}

var emailTmpl = template.Must(template.New("deals").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; color: #333; }
  .header { background-color: #0046be; color: white; padding: 16px; text-align: center; }
  .deal { background-color: #f5f5f5; margin: 16px 0; padding: 12px; border-left: 4px solid #0046be; }
  .current { font-size: 22px; font-weight: bold; color: #c5281c; }
  .regular { text-decoration: line-through; color: #666; }
  .badge { background-color: #c5281c; color: white; padding: 3px 8px; font-weight: bold; }
  .savings { color: #008a00; font-weight: bold; }
</style>
</head>
<body>
<div class="header">
  <h1>Deals Alert</h1>
  <p>Found {{.Count}} deep discount(s)</p>
  <p>{{.Time}}</p>
</div>
{{range .Deals}}
<div class="deal">
  <div><strong>Deal #{{.Index}}: {{.Name}}</strong></div>
  <div><span class="current">${{.CurrentPrice}}</span> <span class="regular">was ${{.RegularPrice}}</span></div>
  <div><span class="badge">{{.DiscountPercent}}% OFF</span> <span class="savings">You save ${{.Savings}}</span></div>
  {{if .URL}}<div><a href="{{.URL}}">View Deal</a></div>{{end}}
</div>
{{end}}
<p>Automated notification. Act fast - deals may expire quickly.</p>
</body>
</html>`))

func renderEmailBody(deals []deal.Deal) (string, error) {
	data := emailData{
		Count: len(deals),
		Time:  time.Now().Format("2006-01-02 15:04:05"),
	}
	for i, d := range deals {
		data.Deals = append(data.Deals, emailDeal{
			Index:           i + 1,
			Name:            d.Name,
			CurrentPrice:    d.CurrentPrice.StringFixed(2),
			RegularPrice:    d.RegularPrice.StringFixed(2),
			DiscountPercent: d.DiscountPercent.Mul(hundred).StringFixed(1),
			Savings:         d.Savings.StringFixed(2),
			URL:             d.URL,
		})
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ Notifier = (*Email)(nil)
