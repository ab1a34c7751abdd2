// Package kalshi implements the REST client for the Kalshi exchange API,
// including the RSA-PSS request signing scheme used by private endpoints.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Client is the REST client for the Kalshi exchange API.
//
// Public market-data endpoints work without credentials. Private endpoints
// (orders, balance) require an API key ID and an RSA private key configured
// via SetRSAPrivateKey.
type Client struct {
	baseURL    string
	signPrefix string // URL path of baseURL, prepended to the signed path
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

var (
	_ domain.MarketAPI   = (*Client)(nil)
	_ domain.OrderPlacer = (*Client)(nil)
)

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier; it may be empty for clients that
// only read public endpoints.
func NewClient(baseURL, apiKeyID string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("kalshi: parse base URL: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		signPrefix: u.Path,
		apiKeyID:   apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// ListOpenMarkets returns every open market in a series, following pagination
// cursors until the exchange reports no more pages.
func (c *Client) ListOpenMarkets(ctx context.Context, series string) ([]domain.Market, error) {
	var out []domain.Market
	cursor := ""

	for {
		params := url.Values{}
		params.Set("series_ticker", series)
		params.Set("status", "open")
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.do(ctx, http.MethodGet, "/markets", params, nil, false)
		if err != nil {
			return nil, fmt.Errorf("kalshi: list markets %s: %w", series, err)
		}

		var resp struct {
			Markets []marketJSON `json:"markets"`
			Cursor  string       `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: decode markets: %w", err)
		}

		for _, m := range resp.Markets {
			out = append(out, toDomainMarket(m))
		}

		if resp.Cursor == "" || len(resp.Markets) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	return out, nil
}

// GetMarket returns a single market by its ticker. Once the market has
// settled, the returned Market carries the winning side in Result.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	path := "/markets/" + url.PathEscape(ticker)

	body, err := c.do(ctx, http.MethodGet, path, nil, nil, false)
	if err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market marketJSON `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return toDomainMarket(resp.Market), nil
}

// GetBalance returns the available account balance in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, true)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp struct {
		Balance int64 `json:"balance"` // cents
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}

	return float64(resp.Balance) / 100.0, nil
}

// PlaceOrder submits a buy limit order for count contracts of side at
// priceUSD per contract and returns the exchange order ID.
func (c *Client) PlaceOrder(ctx context.Context, ticker string, side domain.Side, count int64, priceUSD float64) (string, error) {
	if !side.Valid() {
		return "", fmt.Errorf("kalshi: %w: side %q", domain.ErrInvalidOrder, side)
	}
	if count < 1 {
		return "", fmt.Errorf("kalshi: %w: count %d", domain.ErrInvalidOrder, count)
	}

	cents := int(math.Round(priceUSD * 100))
	if cents < 1 || cents > 99 {
		return "", fmt.Errorf("kalshi: %w: price %.2f outside (0.01, 0.99)", domain.ErrInvalidOrder, priceUSD)
	}

	order := orderRequest{
		Ticker:        ticker,
		ClientOrderID: uuid.NewString(),
		Side:          string(side),
		Action:        "buy",
		Count:         count,
		Type:          "limit",
	}
	switch side {
	case domain.SideYes:
		order.YesPrice = cents
	case domain.SideNo:
		order.NoPrice = cents
	}

	body, err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, order, true)
	if err != nil {
		return "", fmt.Errorf("kalshi: place order %s %s x%d: %w", ticker, side, count, err)
	}

	var resp struct {
		Order orderJSON `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("kalshi: decode order response: %w", err)
	}

	if resp.Order.Status == "canceled" {
		return "", fmt.Errorf("kalshi: %w: order was immediately cancelled", domain.ErrInvalidOrder)
	}

	return resp.Order.OrderID, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do builds, optionally signs, sends, and reads an HTTP request against the
// Kalshi API. path is relative to the API root and must not carry a query
// string; pass query parameters separately so the signature never covers
// them.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, reqBody any, signed bool) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if signed {
		if err := c.signRequest(req, method, path); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds the KALSHI-ACCESS-* authentication headers.
//
// The signed message is the millisecond timestamp, the upper-case HTTP
// method, and the full request path including the API root prefix but
// excluding any query string. The signature is RSA-PSS over SHA-256 with the
// maximum salt length, base64 standard encoded.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		return fmt.Errorf("%w: RSA private key not configured", domain.ErrSigningFailed)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + strings.ToUpper(method) + c.signPrefix + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto, // maximum salt length when signing
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorJSON
	_ = json.Unmarshal(body, &apiErr)
	code, msg := apiErr.details()

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, msg, code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthorized, msg, code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, msg, code)
	case http.StatusBadRequest, http.StatusConflict:
		return fmt.Errorf("%w: %s (%s)", domain.ErrInvalidOrder, msg, code)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, msg, code)
	}
}

// toDomainMarket converts the cent-priced wire market to the dollar-priced
// domain market.
func toDomainMarket(m marketJSON) domain.Market {
	out := domain.Market{
		Ticker:    m.Ticker,
		YesAsk:    float64(m.YesAsk) / 100.0,
		NoAsk:     float64(m.NoAsk) / 100.0,
		CloseTime: m.CloseTime,
	}
	switch strings.ToLower(m.Result) {
	case "yes":
		out.Result = domain.SideYes
	case "no":
		out.Result = domain.SideNo
	}
	return out
}
