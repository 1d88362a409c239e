package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/deal"
)

const searchPagePath = "/site/searchpage.jsp"

// defaultUserAgents is the rotating pool of client identities used when no
// pool is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// ScrapeOptions parameterise the HTML scrape fetcher.
type ScrapeOptions struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgents []string
	Retry      RetryPolicy
	Delay      JitterDelay
}

// Scrape fetches products by scraping category search pages. A cookie jar is
// shared across requests so the upstream session persists within a cycle.
type Scrape struct {
	opts    ScrapeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	agents  []string
	rand    *rand.Rand
}

// NewScrape constructs the scrape fetcher.
func NewScrape(opts ScrapeOptions, logger zerolog.Logger) *Scrape {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.bestbuy.com"
	}

	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}

	jar, _ := cookiejar.New(nil)

	return &Scrape{
		opts:    opts,
		logger:  logger.With().Str("component", "scrape_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout, Jar: jar},
		baseURL: baseURL,
		agents:  agents,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch scrapes one category search page. An empty page is a valid
// zero-length result, never an error.
func (s *Scrape) Fetch(ctx context.Context, category string, maxResults int) ([]deal.Product, error) {
	pageURL := s.baseURL + searchPagePath + "?st=" + url.QueryEscape(category)

	var products []deal.Product
	err := s.opts.Retry.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			s.logger.Warn().Int("attempt", attempt+1).Str("category", category).Msg("retrying scrape")
		}
		if err := s.opts.Delay.Wait(ctx); err != nil {
			return err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return transientErr(category, err)
		}

		products = extractProducts(doc, s.baseURL, s.logger)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("category", category).Int("products", len(products)).Msg("scraped category page")

	if maxResults > 0 && len(products) > maxResults {
		products = products[:maxResults]
	}
	return products, nil
}

func (s *Scrape) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.agents[s.rand.Intn(len(s.agents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// extractStrategy is one entry in the ordered fallback chain. The upstream
// markup drifts; strategies are tried in sequence until one yields products.
type extractStrategy struct {
	name      string
	container string
	title     []string
	price     []string
	regular   []string
	link      []string
}

var extractStrategies = []extractStrategy{
	{
		name:      "sku-item",
		container: "li.sku-item",
		title:     []string{"h4.sku-title a", "h4.sku-title", "h4.sku-header a", "a.sku-title"},
		price:     []string{"span.priceView-customer-price span", "span.priceView-customer-price", "span.priceView-hero-price span"},
		regular:   []string{"span.pricing-price__regular-price", "span.priceView-price-was"},
		link:      []string{"a.image-link", "h4.sku-title a", "a[href]"},
	},
	{
		name:      "shop-sku-list",
		container: "div.shop-sku-list-item",
		title:     []string{"h4.sku-title a", "h4.sku-header", "a.sku-title"},
		price:     []string{"span.priceView-customer-price span", "span.priceView-hero-price span"},
		regular:   []string{"span.pricing-price__regular-price", "span.priceView-price-was"},
		link:      []string{"a.image-link", "a[href]"},
	},
}

func extractProducts(doc *goquery.Document, baseURL string, logger zerolog.Logger) []deal.Product {
	for _, strat := range extractStrategies {
		items := doc.Find(strat.container)
		if items.Length() == 0 {
			continue
		}

		var products []deal.Product
		items.Each(func(_ int, sel *goquery.Selection) {
			p, ok := extractProduct(sel, strat, baseURL)
			if !ok {
				// One unparseable listing is skipped, not a page failure.
				logger.Debug().Str("strategy", strat.name).Msg("skipping listing with incomplete data")
				return
			}
			products = append(products, p)
		})

		if len(products) > 0 {
			return products
		}
	}
	return nil
}

func extractProduct(sel *goquery.Selection, strat extractStrategy, baseURL string) (deal.Product, bool) {
	title := firstText(sel, strat.title)
	if title == "" {
		return deal.Product{}, false
	}

	current, ok := parsePrice(firstText(sel, strat.price))
	if !ok {
		return deal.Product{}, false
	}

	regular, ok := parsePrice(firstText(sel, strat.regular))
	if !ok || regular.IsZero() {
		// No strikethrough price means the listing is at regular price.
		regular = current
	}

	href := firstAttr(sel, strat.link, "href")
	if href != "" && !strings.HasPrefix(href, "http") {
		href = baseURL + href
	}

	sku, _ := sel.Attr("data-sku-id")
	if sku == "" {
		// Fall back to the listing path as a stable identifier.
		sku = href
	}
	if sku == "" {
		return deal.Product{}, false
	}

	return deal.Product{
		SKU:          sku,
		Name:         title,
		CurrentPrice: current,
		RegularPrice: regular,
		URL:          href,
	}, true
}

func firstText(sel *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if found := sel.Find(s).First(); found.Length() > 0 {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstAttr(sel *goquery.Selection, selectors []string, attr string) string {
	for _, s := range selectors {
		if v, ok := sel.Find(s).First().Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// parsePrice extracts the first parseable amount from price text such as
// "$1,299.99" or "$999.99 was $1,299.99".
func parsePrice(text string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(text)
	for _, part := range strings.Fields(cleaned) {
		if d, err := decimal.NewFromString(part); err == nil {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

var _ ProductFetcher = (*Scrape)(nil)
