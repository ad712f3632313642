package matcher

import (
	"sort"

	"payment-reconciliation-service/internal/models"
)

// IndexEntry is the payment an index key resolves to
type IndexEntry struct {
	// RawID is the payment id exactly as the gateway returned it
	RawID string

	// Status is the trimmed, lower-cased payment status
	Status models.PaymentStatus

	Payment *models.Payment
}

// PaymentIndex maps normalized payment ids to their payments.
// When two payments normalize to the same key the later one wins.
type PaymentIndex struct {
	entries         map[string]*IndexEntry
	caseInsensitive bool
	stats           IndexStats
}

// IndexStats provides statistics about how the index was built
type IndexStats struct {
	TotalPayments  int
	IndexedKeys    int
	SkippedEmptyID int
	DuplicateKeys  int
}

// NewPaymentIndex creates a new payment index from a slice of payments in fetch order
func NewPaymentIndex(payments []*models.Payment, caseInsensitive bool) *PaymentIndex {
	index := &PaymentIndex{
		entries:         make(map[string]*IndexEntry, len(payments)),
		caseInsensitive: caseInsensitive,
	}

	for _, p := range payments {
		index.Add(p)
	}
	return index
}

// Add indexes a single payment, replacing any previous payment with the same key.
// Payments whose id is empty, or normalizes to empty, are skipped.
func (pi *PaymentIndex) Add(p *models.Payment) {
	pi.stats.TotalPayments++

	if p == nil || p.ID == "" {
		pi.stats.SkippedEmptyID++
		return
	}

	key := NormalizeKey(p.ID, pi.caseInsensitive)
	if key == "" {
		pi.stats.SkippedEmptyID++
		return
	}

	if _, exists := pi.entries[key]; exists {
		pi.stats.DuplicateKeys++
	}

	pi.entries[key] = &IndexEntry{
		RawID:   p.ID,
		Status:  models.NormalizeStatus(string(p.Status)),
		Payment: p,
	}
	pi.stats.IndexedKeys = len(pi.entries)
}

// Lookup returns the entry for an already normalized key
func (pi *PaymentIndex) Lookup(key string) (*IndexEntry, bool) {
	entry, ok := pi.entries[key]
	return entry, ok
}

// Contains reports whether an already normalized key is indexed
func (pi *PaymentIndex) Contains(key string) bool {
	_, ok := pi.entries[key]
	return ok
}

// Len returns the number of distinct keys
func (pi *PaymentIndex) Len() int {
	return len(pi.entries)
}

// Keys returns the indexed keys in ascending order
func (pi *PaymentIndex) Keys() []string {
	keys := make([]string, 0, len(pi.entries))
	for key := range pi.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetIndexStats returns statistics about the payment index
func (pi *PaymentIndex) GetIndexStats() IndexStats {
	return pi.stats
}
