package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockClient is a mock gateway client for testing. Simulates successful
// payment lookups without calling the gateway API.
type MockClient struct {
	// GetAccessTokenFunc allows customizing token behavior
	GetAccessTokenFunc func(ctx context.Context) (string, error)

	// GetPaymentDetailsFunc allows customizing lookup behavior
	GetPaymentDetailsFunc func(ctx context.Context, paymentRef, accessToken string) (*PaymentDetails, error)

	// Payments stores canned payment records by reference
	Payments map[string]*PaymentDetails

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check that MockClient implements Client.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock gateway client.
func NewMockClient() *MockClient {
	return &MockClient{
		Payments: make(map[string]*PaymentDetails),
	}
}

// GetAccessToken returns a static test token.
func (m *MockClient) GetAccessToken(ctx context.Context) (string, error) {
	m.CallLog = append(m.CallLog, "GetAccessToken()")

	if m.GetAccessTokenFunc != nil {
		return m.GetAccessTokenFunc(ctx)
	}
	return "test-access-token", nil
}

// GetPaymentDetails returns the canned record for the reference, or an
// error when none is registered.
func (m *MockClient) GetPaymentDetails(ctx context.Context, paymentRef, accessToken string) (*PaymentDetails, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPaymentDetails(%s)", paymentRef))

	if m.GetPaymentDetailsFunc != nil {
		return m.GetPaymentDetailsFunc(ctx, paymentRef, accessToken)
	}

	details, ok := m.Payments[paymentRef]
	if !ok {
		return nil, fmt.Errorf("payment details request rejected: status 404")
	}
	return details, nil
}

// AddPayment registers a canned paid record for a reference.
func (m *MockClient) AddPayment(paymentRef, status, total, payMethod string) {
	m.Payments[paymentRef] = &PaymentDetails{
		Status:    status,
		Amount:    &Amount{Total: json.RawMessage(total)},
		PayMethod: payMethod,
	}
}
