package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/deal"
)

const apiPageSizeMax = 100

// APIOptions parameterise the products API fetcher.
type APIOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	Retry     RetryPolicy
}

// API fetches products from the retailer's documented query endpoint.
type API struct {
	opts    APIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAPI constructs the API fetcher.
func NewAPI(opts APIOptions, logger zerolog.Logger) *API {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.bestbuy.com/v1"
	}

	return &API{
		opts:    opts,
		logger:  logger.With().Str("component", "api_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Fetch queries one category search. A missing or rejected credential is a
// permanent failure and is never retried.
func (a *API) Fetch(ctx context.Context, category string, maxResults int) ([]deal.Product, error) {
	if strings.TrimSpace(a.opts.APIKey) == "" {
		return nil, permanentErr(category, errors.New("api key not configured"))
	}

	pageSize := apiPageSizeMax
	if maxResults > 0 && maxResults < pageSize {
		pageSize = maxResults
	}

	endpoint := a.buildURL(category, pageSize)

	var products []deal.Product
	err := a.opts.Retry.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			a.logger.Warn().Int("attempt", attempt+1).Str("category", category).Msg("retrying api request")
		}

		res, err := a.query(ctx, category, endpoint)
		if err != nil {
			return err
		}
		products = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug().Str("category", category).Int("products", len(products)).Msg("api search complete")

	if maxResults > 0 && len(products) > maxResults {
		products = products[:maxResults]
	}
	return products, nil
}

func (a *API) buildURL(category string, pageSize int) string {
	query := fmt.Sprintf("(search=%s&active=true&salePrice>0)", url.QueryEscape(category))

	params := url.Values{}
	params.Set("apiKey", a.opts.APIKey)
	params.Set("format", "json")
	params.Set("show", "sku,name,salePrice,regularPrice,onSale,url")
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", "1")
	params.Set("sort", "salePrice.asc")

	return a.baseURL + "/products" + query + "?" + params.Encode()
}

func (a *API) query(ctx context.Context, category, endpoint string) ([]deal.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transientErr(category, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transientErr(category, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, permanentErr(category, fmt.Errorf("credential rejected: %w", &StatusError{Code: resp.StatusCode}))
	case resp.StatusCode != http.StatusOK:
		return nil, transientErr(category, &StatusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(category, err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, transientErr(category, fmt.Errorf("decode response: %w", err))
	}

	products := make([]deal.Product, 0, len(payload.Products))
	for _, item := range payload.Products {
		p, ok := item.normalize()
		if !ok {
			a.logger.Debug().Str("category", category).Msg("skipping product with incomplete data")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

type searchResponse struct {
	Products []apiProduct `json:"products"`
	Total    int          `json:"total"`
}

type apiProduct struct {
	SKU          json.Number `json:"sku"`
	Name         string      `json:"name"`
	SalePrice    float64     `json:"salePrice"`
	RegularPrice float64     `json:"regularPrice"`
	OnSale       bool        `json:"onSale"`
	URL          string      `json:"url"`
}

func (p apiProduct) normalize() (deal.Product, bool) {
	sku := p.SKU.String()
	if sku == "" || sku == "0" || p.Name == "" || p.SalePrice < 0 || p.RegularPrice < 0 {
		return deal.Product{}, false
	}

	current := decimal.NewFromFloat(p.SalePrice)
	regular := decimal.NewFromFloat(p.RegularPrice)
	if regular.IsZero() {
		regular = current
	}

	return deal.Product{
		SKU:          sku,
		Name:         p.Name,
		CurrentPrice: current,
		RegularPrice: regular,
		URL:          p.URL,
	}, true
}

var _ ProductFetcher = (*API)(nil)
