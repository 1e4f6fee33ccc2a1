// Package gateway talks to the external payment gateway that
// authoritatively confirms whether a charge succeeded. The service never
// trusts client-reported payment state; every completion is verified
// against this source of truth first.
package gateway

import (
	"context"
	"encoding/json"
)

// Client defines the interface for fetching payment confirmations.
// Implementations can use PortOne, a sandbox, or a mock.
type Client interface {
	// GetAccessToken returns a credential for subsequent lookups. The
	// credential may be cached and shared across concurrent calls;
	// implementations refresh it transparently on expiry.
	GetAccessToken(ctx context.Context) (string, error)

	// GetPaymentDetails fetches the gateway's record for a payment
	// reference. Fails on network errors, non-success HTTP status, or a
	// malformed payload; callers treat any failure as verification
	// failure.
	GetPaymentDetails(ctx context.Context, paymentRef, accessToken string) (*PaymentDetails, error)
}

// PaymentDetails is the typed shape of the gateway's payment record.
// The upstream payload is loosely structured JSON; parsing it into this
// struct up front keeps absent or malformed fields visible at one place
// instead of leaking runtime casts into the verification flow.
type PaymentDetails struct {
	// Status is the gateway's status vocabulary, raw. Map it with
	// MapStatus before deciding anything on it.
	Status string `json:"status"`

	// Amount holds the charge amounts. May be absent on malformed
	// responses.
	Amount *Amount `json:"amount"`

	// PayMethod is the payment instrument ("card", "vbank", ...).
	// Optional.
	PayMethod string `json:"pay_method"`
}

// Amount is the gateway's amount container. Total is kept raw because the
// gateway emits it as a JSON number or a numeric string depending on the
// channel; ExtractTotal normalizes it.
type Amount struct {
	Total json.RawMessage `json:"total"`
}
