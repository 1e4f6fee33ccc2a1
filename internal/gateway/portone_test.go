package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/verdandi/internal/gateway"
)

func newTestClient(t *testing.T, baseURL string) *gateway.PortOneClient {
	t.Helper()
	client, err := gateway.NewPortOneClient(gateway.Config{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	})
	require.NoError(t, err)
	return client
}

func writeToken(w http.ResponseWriter, token string) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code": 0,
		"response": map[string]interface{}{
			"access_token": token,
			"expired_at":   time.Now().Add(30 * time.Minute).Unix(),
		},
	})
}

func Test_PortOneClient_RequiresConfig(t *testing.T) {
	_, err := gateway.NewPortOneClient(gateway.Config{})
	assert.Error(t, err)

	_, err = gateway.NewPortOneClient(gateway.Config{BaseURL: "https://api.example.com"})
	assert.Error(t, err, "credentials are required")
}

func Test_PortOneClient_GetAccessToken(t *testing.T) {
	var tokenCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/getToken", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "test-key", creds["imp_key"])
		assert.Equal(t, "test-secret", creds["imp_secret"])

		tokenCalls++
		writeToken(w, "token-1")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	token, err := client.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// Second call is served from cache
	token, err = client.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, tokenCalls)
}

func Test_PortOneClient_GetAccessToken_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    1,
			"message": "invalid credentials",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetAccessToken(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func Test_PortOneClient_GetPaymentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/imp_123", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"response": map[string]interface{}{
				"status":     "paid",
				"amount":     map[string]interface{}{"total": 15000},
				"pay_method": "card",
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	details, err := client.GetPaymentDetails(context.Background(), "imp_123", "token-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", details.Status)
	assert.Equal(t, "card", details.PayMethod)

	total, ok := gateway.ExtractTotal(details.Amount)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(15000).Equal(total))
}

// An expired token gets one transparent refresh and retry; the caller
// never sees the 401.
func Test_PortOneClient_GetPaymentDetails_RefreshesRejectedToken(t *testing.T) {
	var tokenCalls, detailCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/getToken" {
			tokenCalls++
			writeToken(w, "token-fresh")
			return
		}

		detailCalls++
		if r.Header.Get("Authorization") != "Bearer token-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"response": map[string]interface{}{
				"status": "paid",
				"amount": map[string]interface{}{"total": "9900"},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	details, err := client.GetPaymentDetails(context.Background(), "imp_456", "token-stale")
	require.NoError(t, err)
	assert.Equal(t, "paid", details.Status)
	assert.Equal(t, 1, tokenCalls, "exactly one refresh")
	assert.Equal(t, 2, detailCalls, "one rejected call plus one retry")
}

func Test_PortOneClient_GetPaymentDetails_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetPaymentDetails(context.Background(), "imp_missing", "token-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusNotFound))
}

// A context deadline bounds the round trip; a hung gateway resolves to
// an error instead of blocking the verification call.
func Test_PortOneClient_GetPaymentDetails_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetPaymentDetails(ctx, "imp_slow", "token-1")
	assert.Error(t, err)
}
