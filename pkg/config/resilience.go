package config

import (
	"fmt"
	"strings"
	"time"
)

// ResilienceConfig guards calls to upstream services.
type ResilienceConfig struct {
	Retry          RetryConfig          `koanf:"retry"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// RetryConfig applies to transient gRPC failures. Backoff grows
// exponentially from InitialBackoff.
type RetryConfig struct {
	MaxAttempts    uint          `koanf:"maxattempts"`
	InitialBackoff time.Duration `koanf:"initialbackoff"`
}

// CircuitBreakerConfig opens the breaker after more than ConsecutiveFailures
// failures in a row, or when the failure rate exceeds ErrorRatePercent once
// enough calls were seen. An open breaker rejects calls for OpenTimeout.
type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

func (c *ResilienceConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Resilience ---\n")
	fmt.Fprintf(&b, "  retry: %d attempts, backoff from %s\n", c.Retry.MaxAttempts, c.Retry.InitialBackoff)
	fmt.Fprintf(&b, "  circuitbreaker: %d consecutive failures or %d%% errors, open for %s\n",
		c.CircuitBreaker.ConsecutiveFailures, c.CircuitBreaker.ErrorRatePercent, c.CircuitBreaker.OpenTimeout)
	return b.String()
}

func (c *ResilienceConfig) Validate() error {
	switch {
	case c.Retry.MaxAttempts == 0:
		return fmt.Errorf("resilience.retry.maxattempts must be greater than 0")
	case c.Retry.InitialBackoff <= 0:
		return fmt.Errorf("resilience.retry.initialbackoff must be greater than 0")
	case c.CircuitBreaker.ConsecutiveFailures == 0:
		return fmt.Errorf("resilience.circuitbreaker.consecutivefailures must be greater than 0")
	case c.CircuitBreaker.ErrorRatePercent < 0 || c.CircuitBreaker.ErrorRatePercent > 100:
		return fmt.Errorf("resilience.circuitbreaker.errorratepercent must be between 0 and 100")
	case c.CircuitBreaker.OpenTimeout <= 0:
		return fmt.Errorf("resilience.circuitbreaker.opentimeout must be greater than 0")
	}
	return nil
}
