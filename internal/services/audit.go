package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"returns-service/internal/models"
)

// IntentFunc is one orchestrator intent bound to its arguments
type IntentFunc func(ctx context.Context) (*models.Return, error)

// IntentMiddleware wraps an orchestrator intent with a cross-cutting concern
type IntentMiddleware func(next IntentFunc) IntentFunc

// WithAudit logs every invocation of an intent with its outcome. This is the
// explicit wrap-and-delegate form of the audit concern; handlers compose it
// around the orchestrator calls they dispatch.
func WithAudit(logger *logrus.Logger, intent string, actor string) IntentMiddleware {
	return func(next IntentFunc) IntentFunc {
		return func(ctx context.Context) (*models.Return, error) {
			start := time.Now()
			ret, err := next(ctx)

			fields := logrus.Fields{
				"intent":      intent,
				"actor":       actor,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if ret != nil {
				fields["return_id"] = ret.ID
				fields["status"] = ret.Status
			}

			if err != nil {
				fields["retryable"] = models.IsRetryable(err)
				logger.WithError(err).WithFields(fields).Warn("return intent failed")
			} else {
				logger.WithFields(fields).Info("return intent applied")
			}

			return ret, err
		}
	}
}

// Chain composes middlewares so the first one listed runs outermost
func Chain(middlewares ...IntentMiddleware) IntentMiddleware {
	return func(next IntentFunc) IntentFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
