package gateway

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractTotal parses the paid total from a gateway amount container.
// The gateway emits total as a JSON number or a numeric string depending
// on the payment channel; both are parsed as exact decimals so that
// currency comparison never suffers float round-off (1000 must equal
// 1000.00). A missing container, missing field, or unparseable value
// returns ok=false rather than an error - an ambiguous amount is simply
// not a verified amount.
func ExtractTotal(amount *Amount) (decimal.Decimal, bool) {
	if amount == nil || len(amount.Total) == 0 {
		return decimal.Decimal{}, false
	}

	raw := strings.TrimSpace(string(amount.Total))
	if raw == "" || raw == "null" {
		return decimal.Decimal{}, false
	}

	// Numeric string form: "15000" or "15000.00"
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(amount.Total, &s); err != nil {
			return decimal.Decimal{}, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}

	// Bare JSON number form
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
