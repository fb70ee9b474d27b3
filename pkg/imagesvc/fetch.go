package imagesvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"layoutpaint/pkg/agent/middleware/resilience/retry"
	"layoutpaint/pkg/logx"
)

// maxImageBytes caps a fetched image.
const maxImageBytes = 64 << 20

// Fetcher downloads generated images.
type Fetcher struct {
	client   *http.Client
	policy   *retry.Policy
	logger   *logx.Logger
	timeout  time.Duration
	maxBytes int64
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient and a nil
// policy the image-service defaults.
func NewFetcher(client *http.Client, policy *retry.Policy, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	logger := logx.NewLogger("imagesvc")
	return &Fetcher{
		client:   client,
		policy:   loggingPolicy(policy, logger, "Image fetch"),
		logger:   logger,
		timeout:  timeout,
		maxBytes: maxImageBytes,
	}
}

// Fetch returns the bytes of a result, decoding inline base64 or downloading the URL.
func (f *Fetcher) Fetch(ctx context.Context, r Result) ([]byte, error) {
	if r.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(r.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode inline image: %w", err)
		}
		return data, nil
	}
	if r.URL == "" {
		return nil, fmt.Errorf("result has neither url nor inline data")
	}
	return retry.Do(ctx, f.policy, func(ctx context.Context) ([]byte, error) {
		return f.get(ctx, r.URL)
	})
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	attemptCtx, cancel := withTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Op: "image fetch", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body from %s exceeds %d bytes", ErrImageTooLarge, url, f.maxBytes)
	}
	return data, nil
}
