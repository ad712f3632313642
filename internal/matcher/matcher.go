package matcher

import (
	"sort"

	"payment-reconciliation-service/internal/models"
)

// MatchingEngine joins order transaction references against a payment index
type MatchingEngine struct {
	Config  *MatchingConfig
	Index   *PaymentIndex
	matched map[string]struct{}
	stats   MatchStats
}

// MatchStats counts what the engine has observed so far
type MatchStats struct {
	OrdersObserved      int
	OrdersWithReference int
	MatchedDistinct     int
}

// NAEntry is an unmatched payment
type NAEntry struct {
	ID      string
	Status  models.PaymentStatus
	Payment *models.Payment
}

// NAReport lists the unmatched payments of the target status
type NAReport struct {
	TargetStatus models.PaymentStatus

	// Entries are sorted by payment id ascending
	Entries []NAEntry

	// ByStatus groups the entry ids by status, preserving entry order
	ByStatus map[string][]string
}

// IDs returns the NA payment ids in report order
func (r *NAReport) IDs() []string {
	ids := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// NewMatchingEngine creates a new matching engine with the specified configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config:  config.Clone(),
		Index:   NewPaymentIndex(nil, config.CaseInsensitiveIDs),
		matched: make(map[string]struct{}),
	}
}

// LoadPayments builds the payment index and resets any matches observed so far
func (me *MatchingEngine) LoadPayments(payments []*models.Payment) {
	me.Index = NewPaymentIndex(payments, me.Config.CaseInsensitiveIDs)
	me.matched = make(map[string]struct{})
	me.stats = MatchStats{}
}

// ObserveOrders tests every order reference in the batch against the index
func (me *MatchingEngine) ObserveOrders(batch []*models.OrderRef) {
	for _, order := range batch {
		me.stats.OrdersObserved++
		if order == nil || order.TransactionID == "" {
			continue
		}
		me.ObserveReference(order.TransactionID)
	}
}

// ObserveReference normalizes a single transaction reference and records a match.
// It reports whether the reference matched an indexed payment.
func (me *MatchingEngine) ObserveReference(raw string) bool {
	key := NormalizeKey(raw, me.Config.CaseInsensitiveIDs)
	if key == "" {
		return false
	}

	me.stats.OrdersWithReference++
	if !me.Index.Contains(key) {
		return false
	}

	me.matched[key] = struct{}{}
	me.stats.MatchedDistinct = len(me.matched)
	return true
}

// IsMatched reports whether a normalized payment key has been matched by some order
func (me *MatchingEngine) IsMatched(key string) bool {
	_, ok := me.matched[key]
	return ok
}

// MatchedKeys returns the matched keys in ascending order
func (me *MatchingEngine) MatchedKeys() []string {
	keys := make([]string, 0, len(me.matched))
	for key := range me.matched {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NotApplied computes the payments no order referenced, restricted to the target status
func (me *MatchingEngine) NotApplied() *NAReport {
	target := me.Config.TargetStatus()
	report := &NAReport{
		TargetStatus: target,
		Entries:      []NAEntry{},
		ByStatus:     make(map[string][]string),
	}

	for key, entry := range me.Index.entries {
		if me.IsMatched(key) || entry.Status != target {
			continue
		}
		report.Entries = append(report.Entries, NAEntry{
			ID:      entry.RawID,
			Status:  entry.Status,
			Payment: entry.Payment,
		})
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].ID < report.Entries[j].ID
	})

	for _, e := range report.Entries {
		status := e.Status.String()
		report.ByStatus[status] = append(report.ByStatus[status], e.ID)
	}

	return report
}

// GetStats returns statistics about the observed orders
func (me *MatchingEngine) GetStats() MatchStats {
	return me.stats
}
