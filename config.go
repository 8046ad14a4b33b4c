// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"fmt"
	"time"
)

// Config holds the tunables shared by every container.
type Config struct {
	// BlockSize is the block size of byte pools created alongside the
	// containers. Defaults to 256.
	BlockSize int

	// MaxBlocks is the maximum number of nodes a container's pool holds.
	// Defaults to 65536.
	MaxBlocks int

	// MaxCachedBlocks bounds each participant's cache of recycled nodes.
	// The effective bound is at most MaxBlocks/8 so that caches cannot
	// starve other participants. Zero disables caching. Defaults to 1024.
	MaxCachedBlocks int

	// EnableStatistics turns on operation counters and timing.
	EnableStatistics bool

	// EnableBackoff makes contended operations sleep with exponential
	// backoff. When false they spin once per failed attempt.
	EnableBackoff bool

	// MinBackoffDelay is the first backoff sleep. Defaults to 1µs.
	MinBackoffDelay time.Duration

	// MaxBackoffDelay caps the backoff sleep; once reached the caller
	// yields instead. Defaults to 1024µs.
	MaxBackoffDelay time.Duration

	// BackoffMultiplier scales the delay after each sleep. Defaults to 2.
	BackoffMultiplier float64
}

// DefaultConfig returns a Config with the default tunables.
func DefaultConfig() Config {
	return Config{
		BlockSize:         256,
		MaxBlocks:         1 << 16,
		MaxCachedBlocks:   1024,
		EnableStatistics:  true,
		EnableBackoff:     true,
		MinBackoffDelay:   time.Microsecond,
		MaxBackoffDelay:   1024 * time.Microsecond,
		BackoffMultiplier: 2,
	}
}

// Validate checks the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.BlockSize <= 0 {
		return invalidConfig("BlockSize must be > 0")
	}
	if c.MaxBlocks <= 0 {
		return invalidConfig("MaxBlocks must be > 0")
	}
	if c.MaxCachedBlocks < 0 {
		return invalidConfig("MaxCachedBlocks must be >= 0")
	}
	if c.MinBackoffDelay <= 0 {
		return invalidConfig("MinBackoffDelay must be > 0")
	}
	if c.MaxBackoffDelay < c.MinBackoffDelay {
		return invalidConfig("MaxBackoffDelay must be >= MinBackoffDelay")
	}
	if c.BackoffMultiplier < 1 {
		return invalidConfig("BackoffMultiplier must be >= 1")
	}
	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
