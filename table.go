/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mappeddb

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
	"golang.org/x/sync/errgroup"
)

// MappedTable is a typed view of one physical table. Every method builds the
// matching operation and runs it through the database, so extensions see
// table calls like any other operation. A MappedTable holds no mutable state.
type MappedTable[T any] struct {
	db     Database
	name   string
	schema *schema.TableSchema[T]
}

// Name returns the physical table name.
func (t *MappedTable[T]) Name() string { return t.name }

// Schema returns the schema items are mapped with.
func (t *MappedTable[T]) Schema() *schema.TableSchema[T] { return t.schema }

// GetItem reads the item stored under key.
func (t *MappedTable[T]) GetItem(ctx context.Context, key schema.Item) (*T, error) {
	return Execute[*T](ctx, t.db, operation.GetItem[T]{Table: t.name, Schema: t.schema, Key: key})
}

// GetOne reads an item by a single key value substituted into the key
// templates, e.g. "42" for "USER#{ID}".
func (t *MappedTable[T]) GetOne(ctx context.Context, key string) (*T, error) {
	k, err := t.schema.KeyFromString(key)
	if err != nil {
		return nil, err
	}
	return t.GetItem(ctx, k)
}

// GetByKey reads an item by its literal partition and sort key values.
func (t *MappedTable[T]) GetByKey(ctx context.Context, partition, sort string) (*T, error) {
	return t.GetItem(ctx, t.schema.Key(partition, sort))
}

// PutItem writes item, replacing any item with the same key.
func (t *MappedTable[T]) PutItem(ctx context.Context, item T) error {
	_, err := Execute[struct{}](ctx, t.db, operation.PutItem[T]{Table: t.name, Schema: t.schema, Item: item})
	return err
}

// Create writes item only if no item has its key, otherwise it returns an
// AlreadyExistsError.
func (t *MappedTable[T]) Create(ctx context.Context, item T) error {
	_, err := Execute[struct{}](ctx, t.db, operation.PutItem[T]{Table: t.name, Schema: t.schema, Item: item, IfNotExists: true})
	return err
}

// PutIf writes item when condition holds for the stored item.
func (t *MappedTable[T]) PutIf(ctx context.Context, item T, condition expression.ConditionBuilder) error {
	_, err := Execute[struct{}](ctx, t.db, operation.PutItem[T]{Table: t.name, Schema: t.schema, Item: item, Condition: condition})
	return err
}

// DeleteItem removes the item stored under key and returns it, or nil when
// there was none.
func (t *MappedTable[T]) DeleteItem(ctx context.Context, key schema.Item) (*T, error) {
	return Execute[*T](ctx, t.db, operation.DeleteItem[T]{Table: t.name, Schema: t.schema, Key: key})
}

// Delete removes an item by a single key value, see GetOne.
func (t *MappedTable[T]) Delete(ctx context.Context, key string) (*T, error) {
	k, err := t.schema.KeyFromString(key)
	if err != nil {
		return nil, err
	}
	return t.DeleteItem(ctx, k)
}

// UpdateItem sets attributes of an existing item and returns the updated item.
// It fails with a ConditionFailedError when no item has the key.
func (t *MappedTable[T]) UpdateItem(ctx context.Context, key schema.Item, set map[string]any) (*T, error) {
	return Execute[*T](ctx, t.db, operation.UpdateItem[T]{
		Table:     t.name,
		Schema:    t.schema,
		Key:       key,
		Set:       set,
		MustExist: true,
	})
}

// Update runs a full UpdateItem operation against this table.
func (t *MappedTable[T]) Update(ctx context.Context, op operation.UpdateItem[T]) (*T, error) {
	op.Table, op.Schema = t.name, t.schema
	return Execute[*T](ctx, t.db, op)
}

// Query reads one page of a partition.
func (t *MappedTable[T]) Query(ctx context.Context, req operation.QueryRequest) (models.Page[T], error) {
	return Execute[models.Page[T]](ctx, t.db, operation.Query[T]{Table: t.name, Schema: t.schema, Request: req})
}

// QueryAll pages through a query and returns every matching item.
func (t *MappedTable[T]) QueryAll(ctx context.Context, req operation.QueryRequest) ([]T, error) {
	var items []T
	for {
		page, err := t.Query(ctx, req)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if !page.HasMore() {
			return items, nil
		}
		req.StartKey = page.LastEvaluatedKey
	}
}

// QueryEntities reads one page of a partition holding several entity types,
// decoding each item through the type registry.
func (t *MappedTable[T]) QueryEntities(ctx context.Context, req operation.QueryRequest) (models.Page[any], error) {
	return Execute[models.Page[any]](ctx, t.db, operation.QueryEntities[T]{Table: t.name, Schema: t.schema, Request: req})
}

// QueryIndex starts a query on a global secondary index.
func (t *MappedTable[T]) QueryIndex(indexName string) *IndexQuery[T] {
	return &IndexQuery[T]{table: t, req: operation.QueryRequest{IndexName: indexName}}
}

// Stream pages through a query in the background, see operation.QueryStream.
func (t *MappedTable[T]) Stream(ctx context.Context, req operation.QueryRequest, opts ...models.StreamOption) (<-chan models.StreamResult[T], error) {
	return Execute[<-chan models.StreamResult[T]](ctx, t.db, operation.QueryStream[T]{
		Table:   t.name,
		Schema:  t.schema,
		Request: req,
		Options: opts,
	})
}

// Scan reads one page of the table or an index.
func (t *MappedTable[T]) Scan(ctx context.Context, req operation.ScanRequest) (models.Page[T], error) {
	return Execute[models.Page[T]](ctx, t.db, operation.Scan[T]{Table: t.name, Schema: t.schema, Request: req})
}

// ScanAll reads the whole table, splitting the scan into segments read
// concurrently. segments < 2 scans sequentially.
func (t *MappedTable[T]) ScanAll(ctx context.Context, req operation.ScanRequest, segments int) ([]T, error) {
	if segments < 2 {
		return t.scanSegment(ctx, req)
	}

	var mu sync.Mutex
	var items []T
	g, gctx := errgroup.WithContext(ctx)
	for segment := 0; segment < segments; segment++ {
		segReq := req
		segReq.Segment, segReq.TotalSegments = int32(segment), int32(segments)
		g.Go(func() error {
			found, err := t.scanSegment(gctx, segReq)
			if err != nil {
				return err
			}
			mu.Lock()
			items = append(items, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *MappedTable[T]) scanSegment(ctx context.Context, req operation.ScanRequest) ([]T, error) {
	var items []T
	for {
		page, err := t.Scan(ctx, req)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if !page.HasMore() {
			return items, nil
		}
		req.StartKey = page.LastEvaluatedKey
	}
}

// BatchGet reads many items by key.
func (t *MappedTable[T]) BatchGet(ctx context.Context, keys []schema.Item) (models.BatchGetResult[T], error) {
	return Execute[models.BatchGetResult[T]](ctx, t.db, operation.BatchGetItem[T]{Table: t.name, Schema: t.schema, Keys: keys})
}

// BatchPut writes many items.
func (t *MappedTable[T]) BatchPut(ctx context.Context, items []T) (models.BatchWriteResult, error) {
	return Execute[models.BatchWriteResult](ctx, t.db, operation.BatchWriteItem[T]{Table: t.name, Schema: t.schema, Puts: items})
}

// BatchDelete removes many items by key.
func (t *MappedTable[T]) BatchDelete(ctx context.Context, keys []schema.Item) (models.BatchWriteResult, error) {
	return Execute[models.BatchWriteResult](ctx, t.db, operation.BatchWriteItem[T]{Table: t.name, Schema: t.schema, Deletes: keys})
}

// CreateTable creates the physical table from the schema. A nil throughput
// creates an on-demand table.
func (t *MappedTable[T]) CreateTable(ctx context.Context, throughput *operation.Throughput) (*types.TableDescription, error) {
	return Execute[*types.TableDescription](ctx, t.db, operation.CreateTable[T]{Table: t.name, Schema: t.schema, Throughput: throughput})
}

// DeleteTable drops the physical table.
func (t *MappedTable[T]) DeleteTable(ctx context.Context) error {
	_, err := Execute[struct{}](ctx, t.db, operation.DeleteTable{Table: t.name})
	return err
}

// Describe returns the current description of the physical table.
func (t *MappedTable[T]) Describe(ctx context.Context) (*types.TableDescription, error) {
	return Execute[*types.TableDescription](ctx, t.db, operation.DescribeTable{Table: t.name})
}
