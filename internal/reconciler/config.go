package reconciler

import (
	"fmt"
	"time"

	"payment-reconciliation-service/internal/matcher"
)

// Request limits
const (
	DefaultMaxFetch = 200000
	MinMaxFetch     = 1
	MaxMaxFetch     = 1000000

	DefaultOrdersBatchSize = 50000
	MinOrdersBatchSize     = 1000
	MaxOrdersBatchSize     = 200000

	DefaultNAStatus = matcher.DefaultNAStatus
)

// Summary placeholders for unset request fields
const (
	AllStatusesLabel = "(ALL)"
	AllTimeLabel     = "(all-time)"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// Defaults applied to requests that leave the field unset
	DefaultMaxFetch        int    `json:"default_max_fetch" mapstructure:"default_max_fetch"`
	DefaultOrdersBatchSize int    `json:"default_orders_batch_size" mapstructure:"default_orders_batch_size"`
	DefaultNAStatus        string `json:"default_na_status" mapstructure:"default_na_status"`

	// Location interprets date bounds that carry no zone; nil means time.Local
	Location *time.Location `json:"-" mapstructure:"-"`

	// ProgressReporting enables progress callbacks between phases
	ProgressReporting bool `json:"progress_reporting" mapstructure:"progress_reporting"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		DefaultMaxFetch:        DefaultMaxFetch,
		DefaultOrdersBatchSize: DefaultOrdersBatchSize,
		DefaultNAStatus:        DefaultNAStatus,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultMaxFetch < MinMaxFetch || c.DefaultMaxFetch > MaxMaxFetch {
		return fmt.Errorf("default max fetch must be between %d and %d, got %d",
			MinMaxFetch, MaxMaxFetch, c.DefaultMaxFetch)
	}

	if c.DefaultOrdersBatchSize < MinOrdersBatchSize || c.DefaultOrdersBatchSize > MaxOrdersBatchSize {
		return fmt.Errorf("default orders batch size must be between %d and %d, got %d",
			MinOrdersBatchSize, MaxOrdersBatchSize, c.DefaultOrdersBatchSize)
	}

	return nil
}
