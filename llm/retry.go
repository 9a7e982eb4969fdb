package llm

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/refinery/errors"
)

// Retry defaults.
const (
	defaultMaxRetries  = 5
	defaultInitBackoff = time.Second
	defaultMaxBackoff  = 60 * time.Second
	backoffFactor      = 2.0
)

// withDefaults returns effective retry settings.
func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.InitBackoff <= 0 {
		r.InitBackoff = defaultInitBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = defaultMaxBackoff
	}
	return r
}

// retry calls fn until it succeeds, fails permanently, or the attempts run
// out. Rate limits and 5xx answers are retried with exponential backoff.
func retry(ctx context.Context, cfg RetryConfig, provider string, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()
	backoff := cfg.InitBackoff

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "%s request interrupted", provider)
		}
		if isBillingError(err) {
			return errors.WrapWithCode(err, errors.ErrCodeQuotaExceeded, provider+" billing/payment error")
		}
		if !isRetryableError(err) {
			return errors.WrapWithCode(err, errors.ErrCodeGeneration, provider+" request failed")
		}
		if attempt == cfg.MaxRetries {
			code := errors.ErrCodeUnavailable
			if isRateLimitError(err) {
				code = errors.ErrCodeRateLimit
			}
			return errors.WrapWithCode(err, code, provider+" request failed after retries",
				errors.WithMetadata("attempts", strconv.Itoa(attempt+1)))
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%s request interrupted", provider)
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}

// isRateLimitError checks if the error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "capacity")
}

// isServerError checks if the error is a transient server error (5xx).
func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") ||
		strings.Contains(errStr, "temporarily unavailable")
}

func isRetryableError(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

// isBillingError checks if the error is a billing or quota error. These
// never succeed on retry.
func isBillingError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment") ||
		strings.Contains(errStr, "credits") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "insufficient") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "subscription") ||
		strings.Contains(errStr, "expired")
}
