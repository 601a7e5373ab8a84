package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ast-ral/divine/domain/entities"
)

// Middleware wraps a target generator to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next entities.TargetFunc) entities.TargetFunc

// Chain applies middleware to target in FIFO order.
func Chain(target entities.TargetFunc, mws ...Middleware) entities.TargetFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		target = mws[i](target)
	}
	return target
}

// PanicRecoveryMiddleware converts a panicking target into a returned error,
// so that the invocation fails with a CallbackError instead of unwinding
// through the guest.
func PanicRecoveryMiddleware() Middleware {
	return func(next entities.TargetFunc) entities.TargetFunc {
		return func(ctx context.Context) (text string, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
				}
			}()
			return next(ctx)
		}
	}
}

// LoggingMiddleware logs each target call at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next entities.TargetFunc) entities.TargetFunc {
		return func(ctx context.Context) (string, error) {
			start := time.Now()
			text, err := next(ctx)
			if err != nil {
				logger.DebugContext(ctx, "target failed", "error", err, "elapsed", time.Since(start))
				return text, err
			}
			logger.DebugContext(ctx, "target returned", "length", len(text), "elapsed", time.Since(start))
			return text, nil
		}
	}
}

func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic: %w", v)
	case string:
		return fmt.Errorf("panic: %s", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}
