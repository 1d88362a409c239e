package fetcher

import (
	"context"
	"errors"
	"fmt"

	"dealwatcher/internal/deal"
)

// ProductFetcher retrieves normalized listings for one category. The scrape
// and API variants are interchangeable behind this contract; the active one
// is resolved once at startup from configuration.
type ProductFetcher interface {
	Fetch(ctx context.Context, category string, maxResults int) ([]deal.Product, error)
}

// FetchError classifies an upstream failure. Transient failures are eligible
// for backoff and, once exhausted, downgrade to zero results for the
// category. Permanent failures signal misconfiguration (bad credential,
// broken endpoint config) and must abort the process.
type FetchError struct {
	Category  string
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Category, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func transientErr(category string, err error) error {
	return &FetchError{Category: category, Err: err}
}

func permanentErr(category string, err error) error {
	return &FetchError{Category: category, Permanent: true, Err: err}
}

// IsPermanent reports whether err carries a permanent fetch failure.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Permanent
}

// StatusError records a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ClientError reports whether the status is a 4xx. Client errors from the
// scrape target may indicate transient blocking and are retried at most once.
func (e *StatusError) ClientError() bool {
	return e.Code >= 400 && e.Code < 500
}
