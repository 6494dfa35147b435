package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Retry defaults
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

var (
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// Retrier re-invokes a failing remote call with linear backoff:
// after attempt i (0-based) it waits Delay*(i+1). No jitter, no circuit breaker.
type Retrier struct {
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
	metrics     *Metrics
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier. Non-positive values fall back to the defaults.
func NewRetrier(maxAttempts int, delay time.Duration, logger *slog.Logger, metrics *Metrics) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger,
		metrics:     metrics,
		sleep:       sleepContext,
	}
}

// WithLogger returns a copy of r that logs attempts to logger.
// Per-call context such as a window range belongs in logger attributes,
// not in the operation name, which labels metrics.
func (r *Retrier) WithLogger(logger *slog.Logger) *Retrier {
	c := *r
	c.logger = logger
	return &c
}

// Do runs fn until it succeeds or the attempt ceiling is reached.
// The final error is returned wrapped with the attempt count.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn(ctx)
		r.metrics.observeFetch(operation, err)
		if err == nil {
			return nil
		}

		r.logger.Error("attempt failed",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.maxAttempts,
			"error", err.Error(),
		)

		if attempt < r.maxAttempts-1 {
			if sleepErr := r.sleep(ctx, r.delay*time.Duration(attempt+1)); sleepErr != nil {
				return fmt.Errorf("retry: %s aborted after attempt %d: %w", operation, attempt+1, sleepErr)
			}
		}
	}

	r.logger.Error("all attempts failed", "operation", operation, "attempts", r.maxAttempts, "error", err.Error())
	return fmt.Errorf("retry: %s failed after %d attempts: %w", operation, r.maxAttempts, err)
}

// Retry is Do for calls that produce a value
func Retry[T any](ctx context.Context, r *Retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// getJSON performs a GET request and decodes a 2xx JSON body into dst
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d: %s", errUnexpected, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
