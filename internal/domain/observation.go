// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// TransactionObservation is a single transaction or expense event to be
// scored. Observations are immutable once created; they are produced by an
// upstream collaborator (classifier, ingestion API) and never mutated by the
// scoring core.
type TransactionObservation struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`

	// Merchant and Category are optional; empty means absent.
	Merchant string `json:"merchant,omitempty"`
	Category string `json:"category,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Location is optional geolocation metadata.
	Location *Geolocation `json:"location,omitempty"`
}

// Geolocation is a point plus human-readable place labels.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
}

// UserRiskProfile is a read-only snapshot of a user's historical behavior.
// The core borrows a fresh snapshot per analysis; it never caches or mutates
// the profile.
type UserRiskProfile struct {
	UserID string `json:"userId"`

	AvgAmount float64 `json:"avgAmount"`
	StdAmount float64 `json:"stdAmount"`

	KnownMerchants    []string `json:"knownMerchants"`
	TypicalCategories []string `json:"typicalCategories"`

	// TypicalHours are UTC hours (0-23) during which the user normally
	// transacts.
	TypicalHours []int `json:"typicalHours"`

	KnownLocations []Geolocation `json:"knownLocations,omitempty"`

	AccountAgeDays      int `json:"accountAgeDays"`
	PriorFraudIncidents int `json:"priorFraudIncidents"`
}

// KnowsMerchant reports whether the merchant appears in the profile.
func (p *UserRiskProfile) KnowsMerchant(merchant string) bool {
	for _, m := range p.KnownMerchants {
		if m == merchant {
			return true
		}
	}
	return false
}

// TypicalCategory reports whether the category is typical for the user.
func (p *UserRiskProfile) TypicalCategory(category string) bool {
	for _, c := range p.TypicalCategories {
		if c == category {
			return true
		}
	}
	return false
}

// TypicalHour reports whether the UTC hour is within the user's normal
// activity window.
func (p *UserRiskProfile) TypicalHour(hour int) bool {
	for _, h := range p.TypicalHours {
		if h == hour {
			return true
		}
	}
	return false
}
