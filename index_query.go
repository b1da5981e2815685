/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mappeddb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

// IndexQuery builds a query on a global secondary index. Key values given
// without the static prefix of their template get it prepended, so
// WithPartitionKey("a@b.c") on "EMAIL#{Email}" queries "EMAIL#a@b.c".
type IndexQuery[T any] struct {
	table   *MappedTable[T]
	req     operation.QueryRequest
	pkValue string
	sort    func(prefix string) operation.SortCondition
}

// WithPartitionKey sets the index partition key value.
func (q *IndexQuery[T]) WithPartitionKey(value string) *IndexQuery[T] {
	q.pkValue = value
	return q
}

// WithSortKey matches index sort keys equal to value.
func (q *IndexQuery[T]) WithSortKey(value string) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortEquals(withPrefix(prefix, value))
	}
	return q
}

// WithSortKeyPrefix matches index sort keys beginning with prefix.
func (q *IndexQuery[T]) WithSortKeyPrefix(value string) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortBeginsWith(withPrefix(prefix, value))
	}
	return q
}

// WithSortKeyGreaterThan matches index sort keys after value.
func (q *IndexQuery[T]) WithSortKeyGreaterThan(value string) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortGreaterThan(withPrefix(prefix, value))
	}
	return q
}

// WithSortKeyLessThan matches index sort keys before value.
func (q *IndexQuery[T]) WithSortKeyLessThan(value string) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortLessThan(withPrefix(prefix, value))
	}
	return q
}

// WithSortKeyBetween matches index sort keys in [start, end].
func (q *IndexQuery[T]) WithSortKeyBetween(start, end string) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortBetween(withPrefix(prefix, start), withPrefix(prefix, end))
	}
	return q
}

// After matches timestamped sort keys at or after t.
func (q *IndexQuery[T]) After(t time.Time) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortAfter(prefix, t)
	}
	return q
}

// Before matches timestamped sort keys at or before t.
func (q *IndexQuery[T]) Before(t time.Time) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortBefore(prefix, t)
	}
	return q
}

// Between matches timestamped sort keys in [start, end].
func (q *IndexQuery[T]) Between(start, end time.Time) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortBetweenTimes(prefix, start, end)
	}
	return q
}

// InLast matches timestamped sort keys within the last d.
func (q *IndexQuery[T]) InLast(d time.Duration) *IndexQuery[T] {
	q.sort = func(prefix string) operation.SortCondition {
		return operation.SortSince(prefix, d)
	}
	return q
}

// WithFilter restricts the results after the key condition is applied.
func (q *IndexQuery[T]) WithFilter(cond expression.ConditionBuilder) *IndexQuery[T] {
	if q.req.Filter.IsSet() {
		q.req.Filter = q.req.Filter.And(cond)
	} else {
		q.req.Filter = cond
	}
	return q
}

// WithLimit caps the items evaluated per page.
func (q *IndexQuery[T]) WithLimit(limit int32) *IndexQuery[T] {
	q.req.Limit = limit
	return q
}

// Latest returns items in descending sort key order.
func (q *IndexQuery[T]) Latest() *IndexQuery[T] {
	q.req.Descending = true
	return q
}

// Build resolves the key values and returns the query request.
func (q *IndexQuery[T]) Build() (operation.QueryRequest, error) {
	if q.pkValue == "" {
		return operation.QueryRequest{}, mderrors.NewValidationError("partitionKey", "index partition key value is required")
	}

	s := q.table.schema
	idx, ok := s.Index(q.req.IndexName)
	if !ok {
		return operation.QueryRequest{}, mderrors.NewValidationError("index", fmt.Sprintf("unknown index %q", q.req.IndexName))
	}

	req := q.req
	pkPrefix, _ := s.Prefix(idx.PartitionKey.Name)
	req.Partition = withPrefix(pkPrefix, q.pkValue)

	if q.sort != nil {
		if idx.SortKey == nil {
			return operation.QueryRequest{}, mderrors.NewValidationError("sortKey", fmt.Sprintf("index %q has no sort key", idx.Name))
		}
		skPrefix, _ := s.Prefix(idx.SortKey.Name)
		req.Sort = q.sort(skPrefix)
	}
	return req, nil
}

// Execute reads one page.
func (q *IndexQuery[T]) Execute(ctx context.Context) (models.Page[T], error) {
	req, err := q.Build()
	if err != nil {
		return models.Page[T]{}, err
	}
	return q.table.Query(ctx, req)
}

// ExecuteWithPagination reads the page starting after startKey.
func (q *IndexQuery[T]) ExecuteWithPagination(ctx context.Context, startKey schema.Item) (models.Page[T], error) {
	req, err := q.Build()
	if err != nil {
		return models.Page[T]{}, err
	}
	req.StartKey = startKey
	return q.table.Query(ctx, req)
}

// All reads every page.
func (q *IndexQuery[T]) All(ctx context.Context) ([]T, error) {
	req, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.table.QueryAll(ctx, req)
}

// Stream reads the query in the background.
func (q *IndexQuery[T]) Stream(ctx context.Context, opts ...models.StreamOption) (<-chan models.StreamResult[T], error) {
	req, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.table.Stream(ctx, req, opts...)
}

// withPrefix prepends prefix unless value already carries it.
func withPrefix(prefix, value string) string {
	if prefix == "" || strings.HasPrefix(value, prefix) {
		return value
	}
	return prefix + value
}
