package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kailas-cloud/costgate/internal/domain/rate"
	"github.com/kailas-cloud/costgate/internal/metrics"
)

// Client fetches a USD to local-currency quote from one REST source.
// The source must answer GET <base_url>?base=USD&symbols=<CUR> with
// {"rates": {"<CUR>": n}, "date": "2006-01-02"}.
type Client struct {
	name     string
	baseURL  string
	currency string
	timeout  time.Duration
	http     *http.Client
}

// NewClient creates a rate source client. The timeout bounds every fetch;
// a hung provider must never block the caller past it.
func NewClient(name, baseURL, currency string, timeout time.Duration) *Client {
	return &Client{
		name:     name,
		baseURL:  baseURL,
		currency: currency,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
	}
}

// Name returns the configured source name.
func (c *Client) Name() string { return c.name }

type rateResponse struct {
	Rates map[string]float64 `json:"rates"`
	Date  string             `json:"date"`
}

// Fetch requests a fresh quote. The request is bounded by the client
// timeout via a context deadline and is cancellable through ctx.
func (c *Client) Fetch(ctx context.Context) (rate.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return rate.Quote{}, fmt.Errorf("%s: parse url: %w", c.name, err)
	}
	q := u.Query()
	q.Set("base", "USD")
	q.Set("symbols", c.currency)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return rate.Quote{}, fmt.Errorf("%s: build request: %w", c.name, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExchangeFetchesTotal.WithLabelValues(c.name, "error").Inc()
		return rate.Quote{}, fmt.Errorf("%s: fetch rate: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.ExchangeFetchesTotal.WithLabelValues(c.name, "error").Inc()
		return rate.Quote{}, fmt.Errorf("%s: fetch rate: status %d", c.name, resp.StatusCode)
	}

	var parsed rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ExchangeFetchesTotal.WithLabelValues(c.name, "error").Inc()
		return rate.Quote{}, fmt.Errorf("%s: decode rate response: %w", c.name, err)
	}

	value, ok := parsed.Rates[c.currency]
	if !ok || value <= 0 {
		metrics.ExchangeFetchesTotal.WithLabelValues(c.name, "error").Inc()
		return rate.Quote{}, fmt.Errorf("%s: response has no usable %s rate", c.name, c.currency)
	}

	metrics.ExchangeFetchesTotal.WithLabelValues(c.name, "success").Inc()
	return rate.Quote{Rate: value, Date: parsed.Date}, nil
}
