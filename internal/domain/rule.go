package domain

// FraudRule defines a single fraud detection rule. A rule is a boolean
// expression over the feature vector; when it fires it contributes a fixed
// point value to the rule score.
type FraudRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression over feature variables that must
	// evaluate to bool.
	Expression string `json:"expression"`

	// Points contributed to the rule score when the rule fires. No partial
	// credit: a rule either contributes all of its points or none.
	Points float64 `json:"points"`

	Enabled bool `json:"enabled"`
}

// FiredRule records a rule that triggered during evaluation.
type FiredRule struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}
