// Package gateway talks to the Razorpay payments API.
package gateway

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Razorpay REST API root
const DefaultBaseURL = "https://api.razorpay.com/v1"

// Config holds the gateway client settings
type Config struct {
	BaseURL   string        `json:"base_url" mapstructure:"base_url"`
	KeyID     string        `json:"-" mapstructure:"key_id"`
	KeySecret string        `json:"-" mapstructure:"key_secret"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond paces page requests; zero disables pacing
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" mapstructure:"burst"`
}

// DefaultConfig returns a gateway configuration without credentials
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// HasCredentials reports whether both API keys are set
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.KeyID) != "" && strings.TrimSpace(c.KeySecret) != ""
}

// Validate validates the gateway configuration
func (c *Config) Validate() error {
	if !c.HasCredentials() {
		return fmt.Errorf("gateway key id and key secret are required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway base url: %q", c.BaseURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %v", c.Timeout)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative, got %v", c.RequestsPerSecond)
	}

	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when pacing is enabled, got %d", c.Burst)
	}

	return nil
}
