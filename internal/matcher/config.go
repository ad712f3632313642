// Package matcher implements the identifier matching used by payment reconciliation.
//
// Payments are indexed by their normalized id, order transaction references are
// normalized into the same key space and tested for membership, and whatever
// payment keys remain unmatched form the NA (not applied) set:
//
//	engine := matcher.NewMatchingEngine(matcher.DefaultMatchingConfig())
//	engine.LoadPayments(payments)
//	for batch := range batches {
//		engine.ObserveOrders(batch)
//	}
//	report := engine.NotApplied()
package matcher

import (
	"fmt"

	"payment-reconciliation-service/internal/models"
)

// DefaultNAStatus is the payment status reported as NA when none is configured
const DefaultNAStatus = "captured"

// MatchingConfig holds the parameters for a matching run
type MatchingConfig struct {
	// CaseInsensitiveIDs lower-cases both payment ids and order references before matching.
	CaseInsensitiveIDs bool `json:"case_insensitive_ids" mapstructure:"case_insensitive_ids"`

	// NAStatus restricts the NA report to unmatched payments with this status.
	// Compared after trimming and lower-casing; empty means DefaultNAStatus.
	NAStatus string `json:"na_status" mapstructure:"na_status"`
}

// DefaultMatchingConfig returns a configuration with exact-case ids and captured NA payments
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		CaseInsensitiveIDs: false,
		NAStatus:           DefaultNAStatus,
	}
}

// TargetStatus returns the normalized status the NA report is filtered by
func (c *MatchingConfig) TargetStatus() models.PaymentStatus {
	if c.NAStatus == "" {
		return models.PaymentStatus(DefaultNAStatus)
	}
	return models.NormalizeStatus(c.NAStatus)
}

// Validate checks the configuration for values that can never produce a report
func (c *MatchingConfig) Validate() error {
	if c.NAStatus != "" && c.TargetStatus() == "" {
		return fmt.Errorf("na status cannot be blank")
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *MatchingConfig) Clone() *MatchingConfig {
	clone := *c
	return &clone
}
