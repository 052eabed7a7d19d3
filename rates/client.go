package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches currency quotes from the external rates API. The API answers
// with a map of currency code to per-quote-currency prices, e.g.
// {"DUCX": {"USD": "0.0017"}}.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a rates client with a bounded request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the USD rate for every currency the API knows about.
// Currencies without a USD quote are dropped.
func (c *Client) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates: fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates: unexpected status %d from %s", resp.StatusCode, c.url)
	}

	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rates: decode response: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(payload))
	for currency, quotes := range payload {
		usd, ok := quotes["USD"]
		if !ok {
			continue
		}
		out[currency] = usd
	}
	return out, nil
}
