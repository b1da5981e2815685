/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package extension

import (
	"context"
	"log/slog"
	"time"

	"github.com/suparena/mappeddb/operation"
	"golang.org/x/time/rate"
)

// Handler executes a command and returns its untyped result.
type Handler func(ctx context.Context, cmd operation.Command) (any, error)

// Extension wraps a Handler with cross-cutting behavior.
type Extension func(next Handler) Handler

// Chain composes extensions around final. The first extension is the
// outermost: it sees the command first and the result last.
func Chain(final Handler, extensions ...Extension) Handler {
	h := final
	for i := len(extensions) - 1; i >= 0; i-- {
		if extensions[i] != nil {
			h = extensions[i](h)
		}
	}
	return h
}

// Logging logs every command at debug level and every failure at warn level.
func Logging(logger *slog.Logger) Extension {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd operation.Command) (any, error) {
			start := time.Now()
			out, err := next(ctx, cmd)

			attrs := []any{
				slog.String("operation", cmd.Name()),
				slog.String("table", cmd.TableName()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.WarnContext(ctx, "operation failed", append(attrs, slog.Any("error", err))...)
			} else {
				logger.DebugContext(ctx, "operation completed", attrs...)
			}
			return out, err
		}
	}
}

// RateLimit waits for limiter before every command. A cancelled context ends
// the wait with the context's error and the command is not run. It panics when
// limiter is nil.
func RateLimit(limiter *rate.Limiter) Extension {
	if limiter == nil {
		panic("extension: RateLimit requires a non-nil limiter")
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd operation.Command) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, cmd)
		}
	}
}

// Timeout bounds each command with its own deadline. Streaming commands keep
// the caller's context since their worker outlives the call.
func Timeout(d time.Duration) Extension {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd operation.Command) (any, error) {
			if d <= 0 || cmd.Name() == "QueryStream" {
				return next(ctx, cmd)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// ReadOnly rejects every command whose name is not listed in allowed.
func ReadOnly(allowed ...string) Extension {
	if len(allowed) == 0 {
		allowed = []string{"GetItem", "Query", "QueryEntities", "QueryStream", "Scan", "BatchGetItem", "DescribeTable"}
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd operation.Command) (any, error) {
			if !set[cmd.Name()] {
				return nil, &ReadOnlyError{Operation: cmd.Name()}
			}
			return next(ctx, cmd)
		}
	}
}

// ReadOnlyError reports a command rejected by ReadOnly.
type ReadOnlyError struct {
	Operation string
}

func (e *ReadOnlyError) Error() string {
	return "operation " + e.Operation + " is not allowed on a read-only database"
}
