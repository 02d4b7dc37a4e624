package postgres

import (
	"fmt"
	"time"
)

// Config holds configuration for the PostgreSQL record store.
type Config struct {
	Pool PoolConfig

	// TTL expires records that are not rewritten. Zero keeps them forever.
	TTL time.Duration

	// AutoMigrate runs the embedded migrations on Open.
	AutoMigrate bool
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if c.TTL < 0 {
		return fmt.Errorf("record TTL must not be negative")
	}
	return nil
}
