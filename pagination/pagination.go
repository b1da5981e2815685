/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package pagination

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/suparena/mappeddb"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

// DefaultTTL is how long a cursor stays resolvable.
const DefaultTTL = 24 * time.Hour

// EntityType marks cursor records in a shared table.
const EntityType = "PageCursor"

func init() {
	gob.Register(map[string]types.AttributeValue{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberBOOL{})
}

// Paginator converts last evaluated keys into opaque cursors for clients and
// resolves those cursors back into start keys.
type Paginator interface {
	// PageCursor returns an empty cursor when lastKey is empty.
	PageCursor(ctx context.Context, lastKey schema.Item) (string, error)
	// StartKey returns a nil key when the cursor is empty, unknown or expired.
	StartKey(ctx context.Context, cursor string) (schema.Item, error)
}

// Record is the item a cursor is stored as. ExpiresAt is in epoch seconds so
// it can back the table's time to live setting.
type Record struct {
	Cursor    string `dynamodbav:"Cursor"`
	Key       []byte `dynamodbav:"Key"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"`
}

// Option configures a TablePaginator.
type Option func(*TablePaginator)

// WithTTL sets how long cursors stay resolvable.
func WithTTL(ttl time.Duration) Option {
	return func(p *TablePaginator) { p.ttl = ttl }
}

// WithKeyAttributes names the table's partition and sort key attributes,
// "PK" and "SK" by default. An empty sort attribute means the table has none.
func WithKeyAttributes(partition, sort string) Option {
	return func(p *TablePaginator) {
		p.partitionAttr = partition
		p.sortAttr = sort
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *TablePaginator) { p.now = now }
}

// TablePaginator stores start keys as short lived records in the same table
// the paged items come from.
type TablePaginator struct {
	table         *mappeddb.MappedTable[Record]
	ttl           time.Duration
	partitionAttr string
	sortAttr      string
	now           func() time.Time
}

var _ Paginator = (*TablePaginator)(nil)

// New returns a paginator writing cursor records to tableName through db.
func New(db mappeddb.Database, tableName string, opts ...Option) (*TablePaginator, error) {
	p := &TablePaginator{
		ttl:           DefaultTTL,
		partitionAttr: "PK",
		sortAttr:      "SK",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ttl <= 0 {
		return nil, mderrors.NewValidationError("ttl", "must be positive")
	}

	schemaOpts := []schema.Option{schema.WithPartitionKey(p.partitionAttr, "PAGE#{Cursor}")}
	if p.sortAttr != "" {
		schemaOpts = append(schemaOpts, schema.WithSortKey(p.sortAttr, "PAGE#{Cursor}"))
	}
	s, err := schema.New[Record](EntityType, schemaOpts...)
	if err != nil {
		return nil, err
	}
	p.table = mappeddb.Table(db, tableName, s)
	return p, nil
}

// PageCursor stores lastKey under a new cursor id.
func (p *TablePaginator) PageCursor(ctx context.Context, lastKey schema.Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(map[string]types.AttributeValue(lastKey)); err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}

	record := Record{
		Cursor:    uuid.NewString(),
		Key:       buf.Bytes(),
		ExpiresAt: p.now().Add(p.ttl).Unix(),
	}
	if err := p.table.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store page cursor: %w", err)
	}
	return record.Cursor, nil
}

// StartKey loads the key stored under cursor. DynamoDB removes expired items
// lazily, so records past ExpiresAt are treated as missing.
func (p *TablePaginator) StartKey(ctx context.Context, cursor string) (schema.Item, error) {
	if cursor == "" {
		return nil, nil
	}

	record, err := p.table.GetOne(ctx, cursor)
	if mderrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page cursor: %w", err)
	}
	if record.ExpiresAt <= p.now().Unix() || len(record.Key) == 0 {
		return nil, nil
	}

	var key map[string]types.AttributeValue
	if err := gob.NewDecoder(bytes.NewReader(record.Key)).Decode(&key); err != nil {
		return nil, fmt.Errorf("failed to decode last key: %w", err)
	}
	return key, nil
}

// Page is one page of items with the cursor of the next page, empty on the
// last page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Query runs one page of req on table, starting after cursor.
func Query[T any](ctx context.Context, p Paginator, table *mappeddb.MappedTable[T], req operation.QueryRequest, cursor string) (Page[T], error) {
	return run(ctx, p, cursor, func(start schema.Item) (models.Page[T], error) {
		req.StartKey = start
		return table.Query(ctx, req)
	})
}

// Scan runs one page of req on table, starting after cursor.
func Scan[T any](ctx context.Context, p Paginator, table *mappeddb.MappedTable[T], req operation.ScanRequest, cursor string) (Page[T], error) {
	return run(ctx, p, cursor, func(start schema.Item) (models.Page[T], error) {
		req.StartKey = start
		return table.Scan(ctx, req)
	})
}

func run[T any](ctx context.Context, p Paginator, cursor string, fetch func(schema.Item) (models.Page[T], error)) (Page[T], error) {
	start, err := p.StartKey(ctx, cursor)
	if err != nil {
		return Page[T]{}, err
	}
	if cursor != "" && start == nil {
		return Page[T]{}, mderrors.NewValidationError("cursor", "unknown or expired")
	}

	page, err := fetch(start)
	if err != nil {
		return Page[T]{}, err
	}
	next, err := p.PageCursor(ctx, page.LastEvaluatedKey)
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: page.Items, NextCursor: next}, nil
}
