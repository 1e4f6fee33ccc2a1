package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/gateway"
)

func Test_MapStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected domain.PaymentStatus
	}{
		{
			name:     "paid",
			raw:      "PAID",
			expected: domain.PaymentStatusPaid,
		},
		{
			name:     "paid lowercase",
			raw:      "paid",
			expected: domain.PaymentStatusPaid,
		},
		{
			name:     "paid with surrounding whitespace",
			raw:      "  PAID ",
			expected: domain.PaymentStatusPaid,
		},
		{
			name:     "cancelled double-L spelling",
			raw:      "CANCELLED",
			expected: domain.PaymentStatusRefunded,
		},
		{
			name:     "canceled single-L spelling",
			raw:      "CANCELED",
			expected: domain.PaymentStatusRefunded,
		},
		{
			name:     "cancelled mixed case",
			raw:      "Cancelled",
			expected: domain.PaymentStatusRefunded,
		},
		{
			name:     "ready is outside the recognized set and fails closed",
			raw:      "READY",
			expected: domain.PaymentStatusFailed,
		},
		{
			name:     "failed",
			raw:      "FAILED",
			expected: domain.PaymentStatusFailed,
		},
		{
			name:     "unknown status fails closed",
			raw:      "SOMETHING_NEW",
			expected: domain.PaymentStatusFailed,
		},
		{
			name:     "empty string fails closed",
			raw:      "",
			expected: domain.PaymentStatusFailed,
		},
		{
			name:     "whitespace only fails closed",
			raw:      "   ",
			expected: domain.PaymentStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gateway.MapStatus(tt.raw))
		})
	}
}

// Both cancellation spellings must land on the same internal status, so
// no caller can ever branch differently on them.
func Test_MapStatus_CancellationSynonyms(t *testing.T) {
	assert.Equal(t, gateway.MapStatus("CANCELLED"), gateway.MapStatus("CANCELED"))
}
