package core

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/nsoperations/depforge/version"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultBackoffFactor  = 2.0
	defaultJitterFactor   = 0.1
)

// RetryConfig holds retry behavior configuration.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultRetryConfig returns retry configuration with sensible defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		BackoffFactor:  defaultBackoffFactor,
		JitterFactor:   defaultJitterFactor,
	}
}

// IsRetriable determines if a retriever error should be retried.
// Resolution-domain outcomes (missing tags, unknown refs) are answers,
// not failures; only transport-level errors retry.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var tagged *TaggedVersionNotFoundError
	var ref *GitReferenceNotFoundError
	if errors.As(err, &tagged) || errors.As(err, &ref) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// CalculateBackoff returns the wait before the given retry attempt,
// growing exponentially with bounded random jitter.
func (rc *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(rc.InitialBackoff) * math.Pow(rc.BackoffFactor, float64(attempt))
	if limit := float64(rc.MaxBackoff); backoff > limit {
		backoff = limit
	}
	if rc.JitterFactor > 0 {
		jitter := backoff * rc.JitterFactor
		backoff += (rand.Float64()*2 - 1) * jitter
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// RetryingRetriever decorates a Retriever with transparent retry of
// transient failures. Compose it under a CachedRetriever so successes
// are cached and only genuine fetches pay the retry cost.
type RetryingRetriever struct {
	inner  Retriever
	config *RetryConfig
}

// NewRetryingRetriever wraps the retriever with the given retry
// configuration; nil selects defaults.
func NewRetryingRetriever(inner Retriever, config *RetryConfig) *RetryingRetriever {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryingRetriever{inner: inner, config: config}
}

// Versions implements Retriever.
func (r *RetryingRetriever) Versions(ctx context.Context, d Dependency) ([]version.Pinned, error) {
	return withRetry(ctx, r.config, func() ([]version.Pinned, error) {
		return r.inner.Versions(ctx, d)
	})
}

// Dependencies implements Retriever.
func (r *RetryingRetriever) Dependencies(ctx context.Context, d Dependency, v version.Pinned) ([]Requirement, error) {
	return withRetry(ctx, r.config, func() ([]Requirement, error) {
		return r.inner.Dependencies(ctx, d, v)
	})
}

// ResolvedGitReference implements Retriever.
func (r *RetryingRetriever) ResolvedGitReference(ctx context.Context, d Dependency, ref string) (version.Pinned, error) {
	return withRetry(ctx, r.config, func() (version.Pinned, error) {
		return r.inner.ResolvedGitReference(ctx, d, ref)
	})
}

func withRetry[T any](ctx context.Context, config *RetryConfig, op func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; ; attempt++ {
		result, err = op()
		if err == nil || attempt >= config.MaxRetries || !IsRetriable(err) {
			return result, err
		}

		timer := time.NewTimer(config.CalculateBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
