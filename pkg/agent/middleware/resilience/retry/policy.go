// Package retry provides retry logic with exponential backoff for LLM calls and
// image-service requests.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"layoutpaint/pkg/agent/llmerrors"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Delay before the first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Maximum delay between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Add ±10% jitter
}

// DefaultConfig matches the image-service defaults: three attempts, one second
// initial delay, doubling.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  time.Second,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default classifier. It is a blocklist: everything is
// retried unless it is a cancellation, a non-retryable classified LLM error,
// or matches an auth/bad-request pattern.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancelled. DeadlineExceeded stays retryable: per-request timeouts
	// expire while the parent context is still live.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		if llmErr.Type == llmerrors.ErrorTypeServiceUnavailable {
			return false
		}
		if errors.Is(llmErr, context.DeadlineExceeded) {
			return true
		}
		return llmErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"401", "403", "unauthorized", "forbidden", "invalid api key", "400", "404"} {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}
	return true
}

// Policy encapsulates retry configuration and logic.
type Policy struct {
	Classifier Classifier
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
	Config  Config
}

// NewPolicy creates a new retry policy with the given configuration and classifier.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
	}
}

// CalculateDelay returns the sleep before attempt (1-based). The first attempt
// never waits; later ones grow by BackoffFactor up to MaxDelay, then get up to
// ±10% jitter when enabled.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	c := p.Config
	delay := min(time.Duration(float64(c.InitialDelay)*math.Pow(c.BackoffFactor, float64(attempt-2))), c.MaxDelay)
	if c.Jitter && delay > 0 {
		delay += time.Duration((rand.Float64()*2 - 1) * 0.1 * float64(delay))
	}
	return delay
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
