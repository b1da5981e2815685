/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/models"
	"github.com/suparena/mappeddb/schema"
)

// QueryRequest selects the items of one partition of the table or of an index.
type QueryRequest struct {
	// IndexName selects a global secondary index; empty queries the table.
	IndexName string
	// Partition is the exact partition key value, e.g. "USER#42".
	Partition string
	Sort      SortCondition
	Filter    expression.ConditionBuilder
	// Limit caps the items evaluated per page; 0 leaves it to DynamoDB.
	Limit          int32
	StartKey       schema.Item
	Descending     bool
	ConsistentRead bool
}

func buildQueryInput[T any](table string, s *schema.TableSchema[T], req QueryRequest) (*dynamodb.QueryInput, error) {
	if err := validateTarget(table, s); err != nil {
		return nil, err
	}
	if req.Partition == "" {
		return nil, mderrors.NewValidationError("partition", "must not be empty")
	}
	pkName, skName, err := s.KeyNames(req.IndexName)
	if err != nil {
		return nil, err
	}

	keyCond := expression.Key(pkName).Equal(expression.Value(req.Partition))
	if req.Sort.IsSet() {
		if skName == "" {
			return nil, mderrors.NewValidationError("sort", "table or index has no sort key")
		}
		keyCond = keyCond.And(req.Sort.keyCondition(skName))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if req.Filter.IsSet() {
		builder = builder.WithFilter(req.Filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!req.Descending),
		ExclusiveStartKey:         req.StartKey,
	}
	if req.IndexName != "" {
		input.IndexName = aws.String(req.IndexName)
	} else if req.ConsistentRead {
		// GSIs only support eventually consistent reads
		input.ConsistentRead = aws.Bool(true)
	}
	if req.Limit > 0 {
		input.Limit = aws.Int32(req.Limit)
	}
	return input, nil
}

// Query reads one page of items. Items stored under another entity type in the
// same partition are left out of the page.
type Query[T any] struct {
	Table   string
	Schema  *schema.TableSchema[T]
	Request QueryRequest
}

func (op Query[T]) Name() string      { return "Query" }
func (op Query[T]) TableName() string { return op.Table }

func (op Query[T]) Execute(ctx context.Context, client Client) (models.Page[T], error) {
	input, err := buildQueryInput(op.Table, op.Schema, op.Request)
	if err != nil {
		return models.Page[T]{}, err
	}

	out, err := client.Query(ctx, input)
	if err != nil {
		return models.Page[T]{}, fmt.Errorf("Query error: %w", err)
	}

	items, err := decodeItems(op.Schema, out.Items)
	if err != nil {
		return models.Page[T]{}, err
	}
	return models.Page[T]{
		Items:            items,
		LastEvaluatedKey: out.LastEvaluatedKey,
		Count:            out.Count,
		ScannedCount:     out.ScannedCount,
	}, nil
}

// QueryEntities reads one page of a partition holding several entity types.
// Each item is decoded with the decoder registered for its entity type, items
// of unregistered types come back as map[string]any. Schema supplies the key
// names and the entity type attribute.
type QueryEntities[T any] struct {
	Table   string
	Schema  *schema.TableSchema[T]
	Request QueryRequest
}

func (op QueryEntities[T]) Name() string      { return "QueryEntities" }
func (op QueryEntities[T]) TableName() string { return op.Table }

func (op QueryEntities[T]) Execute(ctx context.Context, client Client) (models.Page[any], error) {
	input, err := buildQueryInput(op.Table, op.Schema, op.Request)
	if err != nil {
		return models.Page[any]{}, err
	}

	out, err := client.Query(ctx, input)
	if err != nil {
		return models.Page[any]{}, fmt.Errorf("Query error: %w", err)
	}

	items := make([]any, 0, len(out.Items))
	for i, raw := range out.Items {
		v, err := schema.Decode(raw, op.Schema.EntityTypeAttribute())
		if err != nil {
			return models.Page[any]{}, fmt.Errorf("failed to decode item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return models.Page[any]{
		Items:            items,
		LastEvaluatedKey: out.LastEvaluatedKey,
		Count:            out.Count,
		ScannedCount:     out.ScannedCount,
	}, nil
}

// ScanRequest reads the whole table or index. Segment and TotalSegments
// split the scan for parallel workers.
type ScanRequest struct {
	IndexName     string
	Filter        expression.ConditionBuilder
	Limit         int32
	StartKey      schema.Item
	Segment       int32
	TotalSegments int32
}

// Scan reads one page of a scan.
type Scan[T any] struct {
	Table   string
	Schema  *schema.TableSchema[T]
	Request ScanRequest
}

func (op Scan[T]) Name() string      { return "Scan" }
func (op Scan[T]) TableName() string { return op.Table }

func (op Scan[T]) Execute(ctx context.Context, client Client) (models.Page[T], error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return models.Page[T]{}, err
	}
	req := op.Request
	if req.TotalSegments < 0 || (req.TotalSegments > 0 && (req.Segment < 0 || req.Segment >= req.TotalSegments)) {
		return models.Page[T]{}, mderrors.NewValidationError("segment", fmt.Sprintf("segment %d out of range for %d segments", req.Segment, req.TotalSegments))
	}
	if req.IndexName != "" {
		if _, ok := op.Schema.Index(req.IndexName); !ok {
			return models.Page[T]{}, mderrors.NewValidationError("index", fmt.Sprintf("unknown index %q", req.IndexName))
		}
	}

	input := &dynamodb.ScanInput{
		TableName:         aws.String(op.Table),
		ExclusiveStartKey: req.StartKey,
	}
	if req.IndexName != "" {
		input.IndexName = aws.String(req.IndexName)
	}
	if req.Limit > 0 {
		input.Limit = aws.Int32(req.Limit)
	}
	if req.TotalSegments > 0 {
		input.Segment = aws.Int32(req.Segment)
		input.TotalSegments = aws.Int32(req.TotalSegments)
	}
	if req.Filter.IsSet() {
		expr, err := expression.NewBuilder().WithFilter(req.Filter).Build()
		if err != nil {
			return models.Page[T]{}, fmt.Errorf("failed to build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	out, err := client.Scan(ctx, input)
	if err != nil {
		return models.Page[T]{}, fmt.Errorf("Scan error: %w", err)
	}

	items, err := decodeItems(op.Schema, out.Items)
	if err != nil {
		return models.Page[T]{}, err
	}
	return models.Page[T]{
		Items:            items,
		LastEvaluatedKey: out.LastEvaluatedKey,
		Count:            out.Count,
		ScannedCount:     out.ScannedCount,
	}, nil
}
