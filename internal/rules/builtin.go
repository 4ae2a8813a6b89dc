package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// BuiltinRules returns the default fraud rule set. Each rule fires past its
// own feature threshold and contributes a fixed point value; rules are
// independent and order-insensitive. Operators may replace or extend this
// set through the rule management API.
func BuiltinRules() []*domain.FraudRule {
	return []*domain.FraudRule{
		{
			ID:          "builtin-large-amount",
			Name:        "large_amount",
			Description: "Amount exceeds three standard deviations above the user's average",
			Expression:  "large_amount > 0.0",
			Points:      40,
			Enabled:     true,
		},
		{
			ID:          "builtin-rapid-transactions",
			Name:        "rapid_transactions",
			Description: "Elevated transaction velocity in the last hour",
			Expression:  "velocity_1h > 0.5",
			Points:      35,
			Enabled:     true,
		},
		{
			ID:          "builtin-new-merchant",
			Name:        "new_merchant",
			Description: "Merchant not seen before for this user",
			Expression:  "merchant_novelty > 0.8",
			Points:      25,
			Enabled:     true,
		},
		{
			ID:          "builtin-off-hours",
			Name:        "off_hours",
			Description: "Transaction outside the user's typical active hours",
			Expression:  "off_hours > 0.5",
			Points:      15,
			Enabled:     true,
		},
		{
			ID:          "builtin-location-anomaly",
			Name:        "location_anomaly",
			Description: "Transaction far from the user's known locations",
			Expression:  "location_distance > 0.7",
			Points:      30,
			Enabled:     true,
		},
	}
}
