/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/schema"
)

// Client is the subset of the DynamoDB API the operations use. It is
// satisfied by *dynamodb.Client and by mock.Client.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Operation is a command whose result has type R. The operation alone
// decides what it sends to DynamoDB, how failures are reported and which
// side effects it has.
type Operation[R any] interface {
	// Name identifies the operation kind, e.g. "GetItem".
	Name() string
	// TableName is the physical table the operation targets, if any.
	TableName() string
	// Execute performs the operation with client.
	Execute(ctx context.Context, client Client) (R, error)
}

// Command is an operation with its result type erased. The database and its
// extensions handle commands; typed callers go through mappeddb.Execute.
type Command interface {
	Name() string
	TableName() string
	Run(ctx context.Context, client Client) (any, error)
}

type erased[R any] struct {
	op Operation[R]
}

// Erase turns a typed operation into a Command. Run returns the operation's
// result as an R stored in an interface.
func Erase[R any](op Operation[R]) Command {
	return erased[R]{op: op}
}

func (e erased[R]) Name() string      { return e.op.Name() }
func (e erased[R]) TableName() string { return e.op.TableName() }

func (e erased[R]) Run(ctx context.Context, client Client) (any, error) {
	return e.op.Execute(ctx, client)
}

func (e erased[R]) operation() any { return e.op }

// Unwrap returns the typed operation behind cmd, or cmd itself when it was
// not produced by Erase. Extensions use it to type-switch on operations.
func Unwrap(cmd Command) any {
	if e, ok := cmd.(interface{ operation() any }); ok {
		return e.operation()
	}
	return cmd
}

// Func adapts a function into an Operation.
type Func[R any] struct {
	OpName string
	Table  string
	Fn     func(ctx context.Context, client Client) (R, error)
}

func (f Func[R]) Name() string {
	if f.OpName == "" {
		return "Func"
	}
	return f.OpName
}

func (f Func[R]) TableName() string { return f.Table }

func (f Func[R]) Execute(ctx context.Context, client Client) (R, error) {
	return f.Fn(ctx, client)
}

// validateTarget checks the fields shared by all table operations.
func validateTarget[T any](table string, s *schema.TableSchema[T]) error {
	if table == "" {
		return mderrors.NewValidationError("table", "must not be empty")
	}
	if s == nil {
		return mderrors.NewValidationError("schema", "must not be nil")
	}
	return nil
}

// conditionFailed converts a ConditionalCheckFailedException into a
// ConditionFailedError. It returns nil for any other error.
func conditionFailed(op string, condition *string, err error) error {
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return mderrors.NewConditionFailedError(op, aws.ToString(condition), err)
	}
	return nil
}

// describeKey renders a key as its attribute values ordered by attribute name.
func describeKey(key schema.Item) string {
	names := make([]string, 0, len(key))
	for k := range key {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		switch v := key[k].(type) {
		case *types.AttributeValueMemberS:
			parts = append(parts, v.Value)
		case *types.AttributeValueMemberN:
			parts = append(parts, v.Value)
		default:
			parts = append(parts, fmt.Sprintf("%T", v))
		}
	}
	return strings.Join(parts, "|")
}

// sameEntityType reports whether raw belongs to the schema's entity type.
// Items without the entity type attribute are accepted.
func sameEntityType[T any](s *schema.TableSchema[T], raw schema.Item) bool {
	attr := s.EntityTypeAttribute()
	if attr == "" || s.EntityType() == "" {
		return true
	}
	v, ok := raw[attr].(*types.AttributeValueMemberS)
	if !ok {
		return true
	}
	return v.Value == s.EntityType()
}

// decodeItems decodes the items of the schema's entity type and skips the rest.
func decodeItems[T any](s *schema.TableSchema[T], raw []schema.Item) ([]T, error) {
	items := make([]T, 0, len(raw))
	for i, r := range raw {
		if !sameEntityType(s, r) {
			continue
		}
		v, err := s.MapToItem(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}
