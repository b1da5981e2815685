/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/schema"
)

// QueryStream pages through a query in the background and delivers the items
// on a channel. The channel is closed when the query is exhausted, MaxItems is
// reached, the context is cancelled or a page fails for good.
//
// Throughput errors are retried MaxRetries times with a linear backoff. A page
// that still fails is passed to ErrorHandler: returning true requests the same
// page again, returning false (or having no handler) ends the stream with an
// error result.
type QueryStream[T any] struct {
	Table   string
	Schema  *schema.TableSchema[T]
	Request QueryRequest
	Options []models.StreamOption
}

func (op QueryStream[T]) Name() string      { return "QueryStream" }
func (op QueryStream[T]) TableName() string { return op.Table }

// Execute validates the request and starts the worker. Errors found before the
// first page is requested are returned directly.
func (op QueryStream[T]) Execute(ctx context.Context, client Client) (<-chan models.StreamResult[T], error) {
	input, err := buildQueryInput(op.Table, op.Schema, op.Request)
	if err != nil {
		return nil, err
	}

	options := models.DefaultStreamOptions()
	for _, opt := range op.Options {
		opt(&options)
	}
	if options.PageSize > 0 && op.Request.Limit == 0 {
		input.Limit = aws.Int32(options.PageSize)
	}

	resultCh := make(chan models.StreamResult[T], options.BufferSize)
	w := &streamWorker[T]{
		client:  client,
		schema:  op.Schema,
		options: options,
		out:     resultCh,
	}
	go w.run(ctx, input)

	return resultCh, nil
}

type streamWorker[T any] struct {
	client  Client
	schema  *schema.TableSchema[T]
	options models.StreamOptions
	out     chan<- models.StreamResult[T]

	itemIndex  int64
	pageNumber int
	startTime  time.Time
	errs       []error
}

func (w *streamWorker[T]) run(ctx context.Context, input *dynamodb.QueryInput) {
	defer close(w.out)
	w.startTime = time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		out, err := w.queryWithRetry(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if w.options.ErrorHandler == nil || !w.options.ErrorHandler(err) {
				w.send(ctx, models.StreamResult[T]{
					Error: fmt.Errorf("query failed: %w", err),
					Meta:  w.meta(),
				})
				return
			}
			w.errs = append(w.errs, err)
			continue
		}

		w.pageNumber++

		for _, raw := range out.Items {
			if !sameEntityType(w.schema, raw) {
				continue
			}
			result := w.processItem(raw)
			w.itemIndex++
			if !w.send(ctx, result) {
				return
			}
			if result.Error != nil {
				w.errs = append(w.errs, result.Error)
			}
			if w.options.MaxItems > 0 && w.itemIndex >= w.options.MaxItems {
				w.reportProgress(out.LastEvaluatedKey)
				return
			}
		}

		w.reportProgress(out.LastEvaluatedKey)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	w.reportProgress(nil)
}

func (w *streamWorker[T]) send(ctx context.Context, result models.StreamResult[T]) bool {
	select {
	case <-ctx.Done():
		return false
	case w.out <- result:
		return true
	}
}

func (w *streamWorker[T]) meta() models.StreamMeta {
	return models.StreamMeta{
		Index:      w.itemIndex,
		PageNumber: w.pageNumber,
		Timestamp:  time.Now(),
	}
}

func (w *streamWorker[T]) reportProgress(lastKey map[string]types.AttributeValue) {
	if w.options.ProgressHandler == nil {
		return
	}
	progress := models.StreamProgress{
		ItemsProcessed: w.itemIndex,
		PagesProcessed: w.pageNumber,
		LastKey:        lastKey,
		Errors:         append([]error(nil), w.errs...),
		StartTime:      w.startTime,
	}
	if elapsed := time.Since(w.startTime).Seconds(); elapsed > 0 {
		progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
	}
	w.options.ProgressHandler(progress)
}

func (w *streamWorker[T]) queryWithRetry(ctx context.Context, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= w.options.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := w.client.Query(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}

		if attempt < w.options.MaxRetries {
			backoff := time.Duration(attempt+1) * w.options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d retries: %w", w.options.MaxRetries, lastErr)
}

func (w *streamWorker[T]) processItem(raw map[string]types.AttributeValue) models.StreamResult[T] {
	meta := w.meta()

	item, err := w.schema.MapToItem(raw)
	if err != nil {
		return models.StreamResult[T]{Error: err, Raw: raw, Meta: meta}
	}
	return models.StreamResult[T]{Item: item, Raw: raw, Meta: meta}
}

// isRetryableError reports whether err is a throttling or transient DynamoDB error.
func isRetryableError(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit), errors.As(err, &internal):
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}
