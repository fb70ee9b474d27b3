// Package imagesvc talks to the remote image-edit service and fetches the images
// it returns.
//
// Edit and fetch calls are retried with exponential backoff on transient
// failures only (network errors, 429, 5xx and per-attempt timeouts). Malformed
// results and client errors fail fast.
package imagesvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"layoutpaint/pkg/agent/middleware/resilience/retry"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/logx"
)

var (
	// ErrNoResults is returned when the edit service answers with an empty result list.
	ErrNoResults = errors.New("image service returned no results")

	// ErrImageTooLarge is returned when a fetched image exceeds the size cap.
	ErrImageTooLarge = errors.New("image too large")
)

// EditRequest is one masked edit.
type EditRequest struct {
	Model     string
	ImagePath string // PNG of the current canvas
	MaskPath  string // PNG whose transparent pixels mark the editable region
	Prompt    string
	Size      string // "{width}x{height}"
	N         int
}

// Result is one generated image. Exactly one of URL and B64JSON is set.
type Result struct {
	URL     string
	B64JSON string
}

// EditResponse holds the generated images.
type EditResponse struct {
	Results []Result
}

// Editor performs image edits.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (EditResponse, error)
}

// StatusError is a non-success HTTP status from the edit service or an image host.
type StatusError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ShouldRetry classifies image-service errors. Only transient failures retry.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoResults) || errors.Is(err, ErrImageTooLarge) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	// Per-attempt timeouts expire while the parent context is still live.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// NewPolicy builds the retry policy for image-service calls.
func NewPolicy(cfg config.ImageServiceConfig) *retry.Policy {
	rc := retry.DefaultConfig
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMS > 0 {
		rc.InitialDelay = time.Duration(cfg.InitialBackoffMS) * time.Millisecond
	}
	return retry.NewPolicy(rc, ShouldRetry)
}

// loggingPolicy returns a copy of policy that logs each retry, so callers can
// share one policy. A nil policy gets the image-service defaults.
func loggingPolicy(policy *retry.Policy, logger *logx.Logger, what string) *retry.Policy {
	if policy == nil {
		policy = NewPolicy(config.ImageServiceConfig{})
	}
	p := *policy
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("%s attempt %d after %v: %v", what, attempt, delay, err)
		}
	}
	return &p
}

// Timeout returns the per-attempt timeout for image-service calls.
func Timeout(cfg config.ImageServiceConfig) time.Duration {
	if cfg.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(cfg.TimeoutSec) * time.Second
}

// withTimeout bounds one attempt. A zero timeout leaves ctx unchanged.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
