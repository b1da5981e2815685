/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/schema"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBatchGetSize is the most keys a single BatchGetItem call accepts.
	MaxBatchGetSize = 100
	// MaxBatchWriteSize is the most requests a single BatchWriteItem call accepts.
	MaxBatchWriteSize = 25
	// DefaultBatchConcurrency bounds the chunks sent at the same time.
	DefaultBatchConcurrency = 4
)

func chunk[E any](items []E, size int) [][]E {
	var chunks [][]E
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func concurrency(n int) int {
	if n <= 0 {
		return DefaultBatchConcurrency
	}
	return n
}

// BatchGetItem reads many items by key. Keys are split into requests of at
// most MaxBatchGetSize which run concurrently, so the order of the returned
// items is unspecified. Keys DynamoDB leaves unprocessed are returned in the
// result and not retried.
type BatchGetItem[T any] struct {
	Table          string
	Schema         *schema.TableSchema[T]
	Keys           []schema.Item
	ConsistentRead bool
	Concurrency    int
}

func (op BatchGetItem[T]) Name() string      { return "BatchGetItem" }
func (op BatchGetItem[T]) TableName() string { return op.Table }

func (op BatchGetItem[T]) Execute(ctx context.Context, client Client) (models.BatchGetResult[T], error) {
	var result models.BatchGetResult[T]
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return result, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(op.Concurrency))

	for _, keys := range chunk(op.Keys, MaxBatchGetSize) {
		keys := keys
		g.Go(func() error {
			out, err := client.BatchGetItem(gctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					op.Table: {Keys: keys, ConsistentRead: aws.Bool(op.ConsistentRead)},
				},
			})
			if err != nil {
				return fmt.Errorf("BatchGetItem error: %w", err)
			}

			items, err := decodeItems(op.Schema, out.Responses[op.Table])
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			result.Items = append(result.Items, items...)
			if unprocessed, ok := out.UnprocessedKeys[op.Table]; ok {
				result.UnprocessedKeys = append(result.UnprocessedKeys, unprocessed.Keys...)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.BatchGetResult[T]{}, err
	}
	return result, nil
}

// BatchWriteItem puts and deletes many items. Requests are split into calls of
// at most MaxBatchWriteSize which run concurrently. A failed call fails the
// whole operation, though calls that already succeeded stay applied.
type BatchWriteItem[T any] struct {
	Table       string
	Schema      *schema.TableSchema[T]
	Puts        []T
	Deletes     []schema.Item
	Concurrency int
}

func (op BatchWriteItem[T]) Name() string      { return "BatchWriteItem" }
func (op BatchWriteItem[T]) TableName() string { return op.Table }

func (op BatchWriteItem[T]) Execute(ctx context.Context, client Client) (models.BatchWriteResult, error) {
	var result models.BatchWriteResult
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return result, err
	}

	requests := make([]types.WriteRequest, 0, len(op.Puts)+len(op.Deletes))
	for i, item := range op.Puts {
		av, err := op.Schema.ItemToMap(item)
		if err != nil {
			return result, fmt.Errorf("put %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	for i, key := range op.Deletes {
		if len(key) == 0 {
			return result, mderrors.NewValidationError("deletes", fmt.Sprintf("key %d is empty", i))
		}
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(op.Concurrency))

	for _, batch := range chunk(requests, MaxBatchWriteSize) {
		batch := batch
		g.Go(func() error {
			out, err := client.BatchWriteItem(gctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{op.Table: batch},
			})
			if err != nil {
				return fmt.Errorf("BatchWriteItem error: %w", err)
			}

			unprocessed := out.UnprocessedItems[op.Table]
			mu.Lock()
			defer mu.Unlock()
			result.Written += len(batch) - len(unprocessed)
			result.Unprocessed = append(result.Unprocessed, unprocessed...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.BatchWriteResult{}, err
	}
	return result, nil
}
