package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestSignRequestHeaders(t *testing.T) {
	key, pemBytes := testKeyPEM(t)

	c, err := NewClient("https://demo-api.kalshi.co/trade-api/v2", "key-id-1")
	require.NoError(t, err)
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))

	req, err := http.NewRequest(http.MethodGet, "https://demo-api.kalshi.co/trade-api/v2/portfolio/balance", nil)
	require.NoError(t, err)

	require.NoError(t, c.signRequest(req, http.MethodGet, "/portfolio/balance"))

	assert.Equal(t, "key-id-1", req.Header.Get("KALSHI-ACCESS-KEY"))

	tsHeader := req.Header.Get("KALSHI-ACCESS-TIMESTAMP")
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), ts, 5000)

	sig, err := base64.StdEncoding.DecodeString(req.Header.Get("KALSHI-ACCESS-SIGNATURE"))
	require.NoError(t, err)

	// The signed message is ts + METHOD + API root path + request path, with
	// no query string.
	message := tsHeader + "GET" + "/trade-api/v2/portfolio/balance"
	hash := sha256.Sum256([]byte(message))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	assert.NoError(t, err, "signature must verify against the query-less path")
}

func TestSignRequestWithoutKey(t *testing.T) {
	c, err := NewClient("https://demo-api.kalshi.co/trade-api/v2", "key-id-1")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://demo-api.kalshi.co/trade-api/v2/portfolio/balance", nil)
	require.NoError(t, err)

	err = c.signRequest(req, http.MethodGet, "/portfolio/balance")
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
}

func TestSetRSAPrivateKeyPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	c, err := NewClient("https://demo-api.kalshi.co/trade-api/v2", "k")
	require.NoError(t, err)
	assert.NoError(t, c.SetRSAPrivateKey(pemBytes))
}

func TestListOpenMarketsPaginates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "KXBTC15M", r.URL.Query().Get("series_ticker"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		// Public read, no auth headers expected.
		assert.Empty(t, r.Header.Get("KALSHI-ACCESS-KEY"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"markets": []map[string]any{{
					"ticker":     "KXBTC15M-A",
					"status":     "open",
					"yes_ask":    45,
					"no_ask":     57,
					"close_time": "2026-08-25T12:15:00Z",
				}},
				"cursor": "next",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"markets": []map[string]any{{
				"ticker":     "KXBTC15M-B",
				"status":     "open",
				"yes_ask":    50,
				"no_ask":     52,
				"close_time": "2026-08-25T12:30:00Z",
			}},
			"cursor": "",
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	markets, err := c.ListOpenMarkets(context.Background(), "KXBTC15M")
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "KXBTC15M-A", markets[0].Ticker)
	assert.InDelta(t, 0.45, markets[0].YesAsk, 1e-9)
	assert.InDelta(t, 0.57, markets[0].NoAsk, 1e-9)
	assert.Equal(t, domain.Side(""), markets[0].Result)
}

func TestGetMarketSettled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/KXBTC15M-A", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"market": map[string]any{
				"ticker":     "KXBTC15M-A",
				"status":     "settled",
				"yes_ask":    0,
				"no_ask":     0,
				"close_time": "2026-08-25T12:15:00Z",
				"result":     "no",
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	m, err := c.GetMarket(context.Background(), "KXBTC15M-A")
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, m.Result)
	assert.True(t, m.Settled())
}

func TestGetMarketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found","message":"no such market"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	_, err = c.GetMarket(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrder(t *testing.T) {
	_, pemBytes := testKeyPEM(t)

	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/portfolio/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"order": map[string]any{"order_id": "ord-123", "status": "executed"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "key-id")
	require.NoError(t, err)
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))

	id, err := c.PlaceOrder(context.Background(), "KXBTC15M-A", domain.SideNo, 11, 0.45)
	require.NoError(t, err)
	assert.Equal(t, "ord-123", id)

	assert.Equal(t, "KXBTC15M-A", got.Ticker)
	assert.Equal(t, "no", got.Side)
	assert.Equal(t, "buy", got.Action)
	assert.Equal(t, int64(11), got.Count)
	assert.Equal(t, "limit", got.Type)
	assert.Equal(t, 45, got.NoPrice)
	assert.Zero(t, got.YesPrice)
	assert.NotEmpty(t, got.ClientOrderID)
}

func TestPlaceOrderValidation(t *testing.T) {
	_, pemBytes := testKeyPEM(t)
	c, err := NewClient("https://demo-api.kalshi.co/trade-api/v2", "k")
	require.NoError(t, err)
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))

	_, err = c.PlaceOrder(context.Background(), "T", domain.Side("maybe"), 1, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = c.PlaceOrder(context.Background(), "T", domain.SideYes, 0, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = c.PlaceOrder(context.Background(), "T", domain.SideYes, 1, 1.25)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCheckStatusMapping(t *testing.T) {
	assert.NoError(t, checkStatus(200, nil))
	assert.ErrorIs(t, checkStatus(401, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkStatus(403, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkStatus(404, nil), domain.ErrNotFound)
	assert.ErrorIs(t, checkStatus(429, nil), domain.ErrRateLimited)
	assert.ErrorIs(t, checkStatus(400, nil), domain.ErrInvalidOrder)
	assert.Error(t, checkStatus(500, nil))
}
