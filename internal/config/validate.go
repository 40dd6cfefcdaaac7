package config

import (
	"fmt"
	"math"
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("config: ListenPort must be 1-65535, got %d", c.ListenPort)
	}
	if c.HealthPort < 1 || c.HealthPort > 65535 {
		return fmt.Errorf("config: HealthPort must be 1-65535, got %d", c.HealthPort)
	}
	if c.ListenPort == c.HealthPort {
		return fmt.Errorf("config: ListenPort and HealthPort must differ, both are %d", c.ListenPort)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RequestTimeout must be positive, got %v", c.RequestTimeout)
	}

	if c.CacheMaxSize < 1 {
		return fmt.Errorf("config: CacheMaxSize must be >= 1, got %d", c.CacheMaxSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CacheTTL must be positive, got %v", c.CacheTTL)
	}

	if c.MaxConcurrentShards < 0 {
		return fmt.Errorf("config: MaxConcurrentShards must be >= 0, got %d", c.MaxConcurrentShards)
	}

	if c.SpareCapacityWeight < 0 || c.GeoDistanceWeight < 0 {
		return fmt.Errorf("config: scoring weights must be non-negative, got spare=%v geo=%v",
			c.SpareCapacityWeight, c.GeoDistanceWeight)
	}
	if sum := c.SpareCapacityWeight + c.GeoDistanceWeight; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("config: scoring weights must sum to 1.0, got %v", sum)
	}

	return nil
}
