// Package store reads orders from the MongoDB orders collection.
package store

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDatabase   = "candyman"
	DefaultCollection = "user_details"
)

// Config holds the document store connection settings
type Config struct {
	URI                    string        `json:"-" mapstructure:"uri"`
	Database               string        `json:"database" mapstructure:"database"`
	Collection             string        `json:"collection" mapstructure:"collection"`
	ConnectTimeout         time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `json:"server_selection_timeout" mapstructure:"server_selection_timeout"`
	MaxPoolSize            uint64        `json:"max_pool_size" mapstructure:"max_pool_size"`
	AppName                string        `json:"app_name" mapstructure:"app_name"`
}

// DefaultConfig returns a store configuration without a connection string
func DefaultConfig() *Config {
	return &Config{
		Database:               DefaultDatabase,
		Collection:             DefaultCollection,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		MaxPoolSize:            10,
		AppName:                "payment-reconciler",
	}
}

// Validate validates the store configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return fmt.Errorf("mongo connection uri is required")
	}
	if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
		return fmt.Errorf("mongo connection uri must use the mongodb:// or mongodb+srv:// scheme")
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database name is required")
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("collection name is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", c.ConnectTimeout)
	}
	return nil
}
