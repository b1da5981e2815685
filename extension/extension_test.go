/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package extension_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/mappeddb/extension"
	"github.com/suparena/mappeddb/operation"
	"golang.org/x/time/rate"
)

func command(name string, fn func(ctx context.Context) (string, error)) operation.Command {
	return operation.Erase[string](operation.Func[string]{
		OpName: name,
		Table:  "t",
		Fn: func(ctx context.Context, _ operation.Client) (string, error) {
			return fn(ctx)
		},
	})
}

func run(ctx context.Context, cmd operation.Command) (any, error) {
	return cmd.Run(ctx, nil)
}

func TestChainOrder(t *testing.T) {
	var trace []string
	record := func(name string) extension.Extension {
		return func(next extension.Handler) extension.Handler {
			return func(ctx context.Context, cmd operation.Command) (any, error) {
				trace = append(trace, name+" before")
				out, err := next(ctx, cmd)
				trace = append(trace, name+" after")
				return out, err
			}
		}
	}

	h := extension.Chain(run, record("outer"), nil, record("inner"))
	out, err := h(context.Background(), command("Op", func(context.Context) (string, error) {
		trace = append(trace, "op")
		return "done", nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, []string{"outer before", "inner before", "op", "inner after", "outer after"}, trace)

	t.Run("no extensions", func(t *testing.T) {
		out, err := extension.Chain(run)(context.Background(), command("Op", func(context.Context) (string, error) {
			return "plain", nil
		}))
		require.NoError(t, err)
		assert.Equal(t, "plain", out)
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := extension.Chain(run, extension.Logging(logger))

	_, err := h(context.Background(), command("GetItem", func(context.Context) (string, error) { return "", nil }))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "operation=GetItem")
	assert.Contains(t, buf.String(), "table=t")

	buf.Reset()
	boom := errors.New("boom")
	_, err = h(context.Background(), command("PutItem", func(context.Context) (string, error) { return "", boom }))
	assert.ErrorIs(t, err, boom, "errors pass through unchanged")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	h := extension.Chain(run, extension.RateLimit(limiter))
	calls := 0
	cmd := command("Query", func(context.Context) (string, error) {
		calls++
		return "", nil
	})

	_, err := h(context.Background(), cmd)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h(ctx, cmd)
	assert.Error(t, err, "the second call cannot get a token in time")
	assert.Equal(t, 1, calls)

	t.Run("nil limiter", func(t *testing.T) {
		assert.PanicsWithValue(t, "extension: RateLimit requires a non-nil limiter", func() {
			extension.RateLimit(nil)
		})
	})
}

func TestTimeout(t *testing.T) {
	h := extension.Chain(run, extension.Timeout(time.Minute))

	var deadline bool
	_, err := h(context.Background(), command("GetItem", func(ctx context.Context) (string, error) {
		_, deadline = ctx.Deadline()
		return "", nil
	}))
	require.NoError(t, err)
	assert.True(t, deadline)

	_, err = h(context.Background(), command("QueryStream", func(ctx context.Context) (string, error) {
		_, deadline = ctx.Deadline()
		return "", nil
	}))
	require.NoError(t, err)
	assert.False(t, deadline, "streams keep the caller's context")

	t.Run("expires", func(t *testing.T) {
		h := extension.Chain(run, extension.Timeout(5*time.Millisecond))
		_, err := h(context.Background(), command("Scan", func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestReadOnly(t *testing.T) {
	ok := func(context.Context) (string, error) { return "ok", nil }

	h := extension.Chain(run, extension.ReadOnly())
	for _, name := range []string{"GetItem", "Query", "Scan", "BatchGetItem", "DescribeTable"} {
		out, err := h(context.Background(), command(name, ok))
		require.NoError(t, err, name)
		assert.Equal(t, "ok", out)
	}

	for _, name := range []string{"PutItem", "DeleteItem", "UpdateItem", "BatchWriteItem", "CreateTable", "DeleteTable"} {
		_, err := h(context.Background(), command(name, ok))
		var roe *extension.ReadOnlyError
		require.ErrorAs(t, err, &roe, name)
		assert.Equal(t, name, roe.Operation)
	}

	t.Run("custom allow list", func(t *testing.T) {
		h := extension.Chain(run, extension.ReadOnly("Count"))
		_, err := h(context.Background(), command("Count", ok))
		assert.NoError(t, err)
		_, err = h(context.Background(), command("GetItem", ok))
		assert.Error(t, err)
	})
}
