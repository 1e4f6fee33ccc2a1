package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/verdandi/internal/telemetry"
)

// Config contains configuration for the PortOne gateway client.
type Config struct {
	// BaseURL is the gateway API root, e.g. "https://api.iamport.kr".
	BaseURL string

	// APIKey and APISecret authenticate the token request.
	APIKey    string
	APISecret string

	// TimeoutSeconds bounds every gateway round trip. A gateway that does
	// not answer within the bound resolves to verification failure, it
	// never hangs the caller. Defaults to 10.
	TimeoutSeconds int
}

// PortOneClient implements Client against the PortOne REST API.
//
// The access token is cached and shared across concurrent verification
// calls; an expired or rejected token is refreshed transparently so
// callers never manage credentials themselves.
type PortOneClient struct {
	config Config
	http   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Compile-time check that PortOneClient implements Client.
var _ Client = (*PortOneClient)(nil)

// NewPortOneClient creates a PortOne-backed gateway client.
func NewPortOneClient(config Config) (*PortOneClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if config.APIKey == "" || config.APISecret == "" {
		return nil, fmt.Errorf("gateway API credentials are required")
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 10
	}

	return &PortOneClient{
		config: config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// tokenResponse is the shape of POST /users/getToken.
type tokenResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response struct {
		AccessToken string `json:"access_token"`
		ExpiredAt   int64  `json:"expired_at"`
	} `json:"response"`
}

// detailsResponse is the envelope of GET /payments/{ref}.
type detailsResponse struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response *PaymentDetails `json:"response"`
}

// GetAccessToken returns a cached token, fetching a fresh one when the
// cache is empty or within the expiry margin.
func (c *PortOneClient) GetAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(30*time.Second).Before(c.tokenExpiry) {
		return c.token, nil
	}

	return c.refreshTokenLocked(ctx)
}

// refreshTokenLocked fetches a new token. Caller holds c.mu.
func (c *PortOneClient) refreshTokenLocked(ctx context.Context) (string, error) {
	defer observeLatency("get_token", time.Now())

	body, err := json.Marshal(map[string]string{
		"imp_key":    c.config.APIKey,
		"imp_secret": c.config.APISecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/users/getToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Code != 0 || tr.Response.AccessToken == "" {
		return "", fmt.Errorf("token request rejected: %s", tr.Message)
	}

	c.token = tr.Response.AccessToken
	c.tokenExpiry = time.Unix(tr.Response.ExpiredAt, 0)
	return c.token, nil
}

// GetPaymentDetails fetches the gateway's record for a payment reference.
// A 401 invalidates the cached token and retries once with a fresh one.
func (c *PortOneClient) GetPaymentDetails(ctx context.Context, paymentRef, accessToken string) (*PaymentDetails, error) {
	details, status, err := c.fetchDetails(ctx, paymentRef, accessToken)
	if status == http.StatusUnauthorized {
		c.invalidateToken(accessToken)
		fresh, tokenErr := c.GetAccessToken(ctx)
		if tokenErr != nil {
			return nil, fmt.Errorf("token refresh after rejection failed: %w", tokenErr)
		}
		details, _, err = c.fetchDetails(ctx, paymentRef, fresh)
	}
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (c *PortOneClient) fetchDetails(ctx context.Context, paymentRef, accessToken string) (*PaymentDetails, int, error) {
	defer observeLatency("get_payment_details", time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/payments/"+paymentRef, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build payment details request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("payment details request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("payment details request rejected: status %d", resp.StatusCode)
	}

	var dr detailsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&dr); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode payment details: %w", err)
	}
	if dr.Code != 0 {
		return nil, resp.StatusCode, fmt.Errorf("gateway rejected payment lookup: %s", dr.Message)
	}
	if dr.Response == nil {
		return nil, resp.StatusCode, fmt.Errorf("gateway returned empty payment record")
	}

	return dr.Response, resp.StatusCode, nil
}

// invalidateToken drops the cached token if it is still the rejected one,
// so only the first caller pays for the refresh.
func (c *PortOneClient) invalidateToken(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == rejected {
		c.token = ""
	}
}

func observeLatency(operation string, start time.Time) {
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
