package gateway

import (
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
)

// MapStatus collapses the gateway's status vocabulary into the internal
// PaymentStatus domain. Matching is case-insensitive and recognized
// synonyms collapse to one canonical status; both cancellation spellings
// mean the charge was reversed. Anything unrecognized, including the
// empty string, fails closed to FAILED - the mapper never errors.
func MapStatus(raw string) domain.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID":
		return domain.PaymentStatusPaid
	case "CANCELLED", "CANCELED":
		return domain.PaymentStatusRefunded
	default:
		return domain.PaymentStatusFailed
	}
}
