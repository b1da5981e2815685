/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/schema"
)

// GetItem reads one item by its primary key. A missing item is reported as
// a NotFoundError.
type GetItem[T any] struct {
	Table          string
	Schema         *schema.TableSchema[T]
	Key            schema.Item
	ConsistentRead bool
}

func (op GetItem[T]) Name() string      { return "GetItem" }
func (op GetItem[T]) TableName() string { return op.Table }

func (op GetItem[T]) Execute(ctx context.Context, client Client) (*T, error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return nil, err
	}
	if len(op.Key) == 0 {
		return nil, mderrors.NewValidationError("key", "must not be empty")
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(op.Table),
		Key:            op.Key,
		ConsistentRead: aws.Bool(op.ConsistentRead),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, mderrors.NewNotFoundError(op.Schema.EntityType(), describeKey(op.Key))
	}

	item, err := op.Schema.MapToItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// PutItem writes an item, replacing any item with the same key unless
// IfNotExists or Condition prevents it.
type PutItem[T any] struct {
	Table  string
	Schema *schema.TableSchema[T]
	Item   T
	// IfNotExists rejects the write when an item with the same key exists.
	IfNotExists bool
	// Condition is an optional extra condition on the existing item.
	Condition expression.ConditionBuilder
}

func (op PutItem[T]) Name() string      { return "PutItem" }
func (op PutItem[T]) TableName() string { return op.Table }

func (op PutItem[T]) Execute(ctx context.Context, client Client) (struct{}, error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return struct{}{}, err
	}

	av, err := op.Schema.ItemToMap(op.Item)
	if err != nil {
		return struct{}{}, err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(op.Table),
		Item:      av,
	}

	cond, hasCond := op.Condition, op.Condition.IsSet()
	if op.IfNotExists {
		notExists := expression.AttributeNotExists(expression.Name(op.Schema.PartitionKey().Name))
		if hasCond {
			cond = notExists.And(cond)
		} else {
			cond = notExists
		}
		hasCond = true
	}
	if hasCond {
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if _, err := client.PutItem(ctx, input); err != nil {
		if cerr := conditionFailed(op.Name(), input.ConditionExpression, err); cerr != nil {
			if op.IfNotExists && !op.Condition.IsSet() {
				key, _ := op.Schema.KeyFor(op.Item)
				return struct{}{}, mderrors.NewAlreadyExistsError(op.Schema.EntityType(), describeKey(key))
			}
			return struct{}{}, cerr
		}
		return struct{}{}, fmt.Errorf("PutItem error: %w", err)
	}
	return struct{}{}, nil
}

// DeleteItem removes an item by key and returns the deleted item, or nil when
// nothing was stored under the key.
type DeleteItem[T any] struct {
	Table     string
	Schema    *schema.TableSchema[T]
	Key       schema.Item
	Condition expression.ConditionBuilder
}

func (op DeleteItem[T]) Name() string      { return "DeleteItem" }
func (op DeleteItem[T]) TableName() string { return op.Table }

func (op DeleteItem[T]) Execute(ctx context.Context, client Client) (*T, error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return nil, err
	}
	if len(op.Key) == 0 {
		return nil, mderrors.NewValidationError("key", "must not be empty")
	}

	input := &dynamodb.DeleteItemInput{
		TableName:    aws.String(op.Table),
		Key:          op.Key,
		ReturnValues: types.ReturnValueAllOld,
	}
	if op.Condition.IsSet() {
		expr, err := expression.NewBuilder().WithCondition(op.Condition).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	out, err := client.DeleteItem(ctx, input)
	if err != nil {
		if cerr := conditionFailed(op.Name(), input.ConditionExpression, err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("DeleteItem error: %w", err)
	}
	if len(out.Attributes) == 0 {
		return nil, nil
	}

	old, err := op.Schema.MapToItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &old, nil
}

// UpdateItem applies an update expression to one item and returns the item as
// it is after the update. Set assigns attribute values directly and is merged
// into Update. Index keys built from Set fields are rewritten with them; fields
// used by the primary key cannot be set.
type UpdateItem[T any] struct {
	Table     string
	Schema    *schema.TableSchema[T]
	Key       schema.Item
	Update    expression.UpdateBuilder
	Set       map[string]any
	Condition expression.ConditionBuilder
	// MustExist fails the update with a ConditionFailedError when no item has the key.
	MustExist bool
}

func (op UpdateItem[T]) Name() string      { return "UpdateItem" }
func (op UpdateItem[T]) TableName() string { return op.Table }

func (op UpdateItem[T]) Execute(ctx context.Context, client Client) (*T, error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return nil, err
	}
	if len(op.Key) == 0 {
		return nil, mderrors.NewValidationError("key", "must not be empty")
	}

	update := op.Update
	names := make([]string, 0, len(op.Set))
	for name := range op.Set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, isKey := op.Key[name]; isKey {
			return nil, mderrors.NewValidationError(name, "key attributes cannot be updated")
		}
		update = update.Set(expression.Name(name), expression.Value(op.Set[name]))
	}

	indexSet, indexRemove, err := op.Schema.IndexKeyUpdates(op.Set)
	if err != nil {
		return nil, err
	}
	indexNames := make([]string, 0, len(indexSet))
	for name := range indexSet {
		if _, explicit := op.Set[name]; !explicit {
			indexNames = append(indexNames, name)
		}
	}
	sort.Strings(indexNames)
	for _, name := range indexNames {
		update = update.Set(expression.Name(name), expression.Value(indexSet[name]))
	}
	for _, name := range indexRemove {
		if _, explicit := op.Set[name]; !explicit {
			update = update.Remove(expression.Name(name))
		}
	}

	builder := expression.NewBuilder().WithUpdate(update)
	cond, hasCond := op.Condition, op.Condition.IsSet()
	if op.MustExist {
		exists := expression.AttributeExists(expression.Name(op.Schema.PartitionKey().Name))
		if hasCond {
			cond = exists.And(cond)
		} else {
			cond = exists
		}
		hasCond = true
	}
	if hasCond {
		builder = builder.WithCondition(cond)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, mderrors.NewValidationError("update", err.Error())
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(op.Table),
		Key:                       op.Key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}
	if hasCond {
		input.ConditionExpression = expr.Condition()
	}

	out, err := client.UpdateItem(ctx, input)
	if err != nil {
		if cerr := conditionFailed(op.Name(), input.ConditionExpression, err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("UpdateItem error: %w", err)
	}

	item, err := op.Schema.MapToItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
