// Package coinbase implements the reference-price client for the Coinbase
// public spot price endpoint.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Client reads spot prices from the Coinbase v2 public API. No credentials
// are required.
type Client struct {
	baseURL    string
	pair       string
	httpClient *http.Client
}

var _ domain.PriceFeed = (*Client)(nil)

// NewClient creates a spot price client for the given trading pair, e.g.
// "BTC-USD". baseURL is the API host, e.g. "https://api.coinbase.com".
func NewClient(baseURL, pair string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		pair:    pair,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetSpotPrice returns the current spot price in dollars.
func (c *Client) GetSpotPrice(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/v2/prices/%s/spot", c.baseURL, url.PathEscape(c.pair))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("coinbase: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coinbase: spot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("coinbase: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase: spot price HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data struct {
			Amount   string `json:"amount"`
			Base     string `json:"base"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("coinbase: decode spot response: %w", err)
	}

	price, err := strconv.ParseFloat(payload.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse amount %q: %w", payload.Data.Amount, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("coinbase: non-positive spot price %v", price)
	}

	return price, nil
}
