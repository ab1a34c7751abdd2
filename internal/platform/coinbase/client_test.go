package coinbase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/prices/BTC-USD/spot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"amount":"67123.45","base":"BTC","currency":"USD"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTC-USD")
	price, err := c.GetSpotPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 67123.45, price, 1e-9)
}

func TestGetSpotPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTC-USD")
	_, err := c.GetSpotPrice(context.Background())
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestGetSpotPriceBadAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"amount":"not-a-number"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTC-USD")
	_, err := c.GetSpotPrice(context.Background())
	assert.Error(t, err)
}
