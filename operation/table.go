/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/schema"
)

// Throughput sets provisioned capacity. A nil Throughput creates an
// on-demand table.
type Throughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

// CreateTable creates a table whose key schema and global secondary indexes
// come from the schema. Every key attribute is a string and every index
// projects all attributes.
type CreateTable[T any] struct {
	Table      string
	Schema     *schema.TableSchema[T]
	Throughput *Throughput
}

func (op CreateTable[T]) Name() string      { return "CreateTable" }
func (op CreateTable[T]) TableName() string { return op.Table }

// Input builds the CreateTable request without sending it.
func (op CreateTable[T]) Input() (*dynamodb.CreateTableInput, error) {
	if err := validateTarget(op.Table, op.Schema); err != nil {
		return nil, err
	}

	var definitions []types.AttributeDefinition
	seen := make(map[string]bool)
	define := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		definitions = append(definitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	keySchema := func(pk string, sk *string) []types.KeySchemaElement {
		define(pk)
		elems := []types.KeySchemaElement{{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash}}
		if sk != nil {
			define(*sk)
			elems = append(elems, types.KeySchemaElement{AttributeName: aws.String(*sk), KeyType: types.KeyTypeRange})
		}
		return elems
	}

	input := &dynamodb.CreateTableInput{TableName: aws.String(op.Table)}

	var sortName *string
	if sk, ok := op.Schema.SortKey(); ok {
		sortName = aws.String(sk.Name)
	}
	input.KeySchema = keySchema(op.Schema.PartitionKey().Name, sortName)

	for _, idx := range op.Schema.Indexes() {
		var idxSort *string
		if idx.SortKey != nil {
			idxSort = aws.String(idx.SortKey.Name)
		}
		gsi := types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  keySchema(idx.PartitionKey.Name, idxSort),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
		if op.Throughput != nil {
			gsi.ProvisionedThroughput = op.Throughput.provisioned()
		}
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, gsi)
	}
	input.AttributeDefinitions = definitions

	if op.Throughput != nil {
		if op.Throughput.ReadCapacityUnits <= 0 || op.Throughput.WriteCapacityUnits <= 0 {
			return nil, mderrors.NewValidationError("throughput", "capacity units must be positive")
		}
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = op.Throughput.provisioned()
	} else {
		input.BillingMode = types.BillingModePayPerRequest
	}
	return input, nil
}

func (t *Throughput) provisioned() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(t.ReadCapacityUnits),
		WriteCapacityUnits: aws.Int64(t.WriteCapacityUnits),
	}
}

func (op CreateTable[T]) Execute(ctx context.Context, client Client) (*types.TableDescription, error) {
	input, err := op.Input()
	if err != nil {
		return nil, err
	}
	out, err := client.CreateTable(ctx, input)
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil, mderrors.NewAlreadyExistsError("table", op.Table)
		}
		return nil, fmt.Errorf("CreateTable error: %w", err)
	}
	return out.TableDescription, nil
}

// DeleteTable drops a table.
type DeleteTable struct {
	Table string
}

func (op DeleteTable) Name() string      { return "DeleteTable" }
func (op DeleteTable) TableName() string { return op.Table }

func (op DeleteTable) Execute(ctx context.Context, client Client) (struct{}, error) {
	if op.Table == "" {
		return struct{}{}, mderrors.NewValidationError("table", "must not be empty")
	}
	if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(op.Table)}); err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return struct{}{}, mderrors.NewNotFoundError("table", op.Table)
		}
		return struct{}{}, fmt.Errorf("DeleteTable error: %w", err)
	}
	return struct{}{}, nil
}

// DescribeTable returns the current description of a table.
type DescribeTable struct {
	Table string
}

func (op DescribeTable) Name() string      { return "DescribeTable" }
func (op DescribeTable) TableName() string { return op.Table }

func (op DescribeTable) Execute(ctx context.Context, client Client) (*types.TableDescription, error) {
	if op.Table == "" {
		return nil, mderrors.NewValidationError("table", "must not be empty")
	}
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(op.Table)})
	if err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return nil, mderrors.NewNotFoundError("table", op.Table)
		}
		return nil, fmt.Errorf("DescribeTable error: %w", err)
	}
	return out.Table, nil
}
