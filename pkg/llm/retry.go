package llm

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/logger"
)

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"internal error",
	"internal server error",
	"bad gateway",
	"overloaded",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"529",
}

// isRetryableError reports whether err looks transient.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func delayType(backoff string) retry.DelayTypeFunc {
	switch backoff {
	case "fixed":
		return retry.FixedDelay
	case "exponential":
		fallthrough
	default:
		return retry.BackOffDelay
	}
}

// withRetry runs call under config, returning the last successful value.
func withRetry(ctx context.Context, config RetryConfig, provider string, call func() (string, error)) (string, error) {
	var (
		result         string
		originalErrors []error
	)

	attempts := config.Attempts
	if attempts < 1 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			out, err := call()
			if err != nil {
				originalErrors = append(originalErrors, err)
				return err
			}
			result = out
			return nil
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Duration(config.InitialDelay)*time.Millisecond),
		retry.MaxDelay(time.Duration(config.MaxDelay)*time.Millisecond),
		retry.DelayType(delayType(config.BackoffType)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", attempts).
				Warnf("retrying %s API call", provider)
		}),
	)
	if err != nil {
		if len(originalErrors) > 1 {
			return "", errors.Wrapf(err, "all %d attempts failed", len(originalErrors))
		}
		return "", err
	}
	return result, nil
}
