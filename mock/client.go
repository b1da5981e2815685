/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory DynamoDB client for testing
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/suparena/mappeddb/operation"
)

var _ operation.Client = (*Client)(nil)

// Call records one request received by the client.
type Call struct {
	Operation string
	Table     string
	Input     any
}

type indexDef struct {
	name         string
	partitionKey string
	sortKey      string
}

type table struct {
	name         string
	partitionKey string
	sortKey      string
	indexes      []indexDef
	createdAt    time.Time
	items        map[string]map[string]types.AttributeValue
}

// Client is an in-memory stand-in for *dynamodb.Client. It understands the
// key condition, condition, filter and update expressions produced by the
// expression builder.
type Client struct {
	mu      sync.RWMutex
	tables  map[string]*table
	calls   []Call
	errs    map[string]error
	pending map[string][]error

	// QueryFunc replaces the in-memory query when set.
	QueryFunc func(ctx context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	// BatchWriteFunc replaces the in-memory batch write when set.
	BatchWriteFunc func(ctx context.Context, params *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
}

// IndexSpec declares a global secondary index for WithTable.
type IndexSpec struct {
	Name         string
	PartitionKey string
	SortKey      string
}

// NewClient creates an empty client.
func NewClient() *Client {
	return &Client{
		tables:  make(map[string]*table),
		errs:    make(map[string]error),
		pending: make(map[string][]error),
	}
}

// WithTable declares a table without going through CreateTable.
func (c *Client) WithTable(name, partitionKey, sortKey string, indexes ...IndexSpec) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &table{
		name:         name,
		partitionKey: partitionKey,
		sortKey:      sortKey,
		createdAt:    time.Now(),
		items:        make(map[string]map[string]types.AttributeValue),
	}
	for _, idx := range indexes {
		t.indexes = append(t.indexes, indexDef{name: idx.Name, partitionKey: idx.PartitionKey, sortKey: idx.SortKey})
	}
	c.tables[name] = t
	return c
}

// WithError makes every call of the named operation, e.g. "PutItem", fail with err.
func (c *Client) WithError(op string, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[op] = err
	return c
}

// FailNext queues errors returned by the next calls of the named operation,
// one per call, before it goes back to normal.
func (c *Client) FailNext(op string, errs ...error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[op] = append(c.pending[op], errs...)
	return c
}

// Calls returns the requests received so far.
func (c *Client) Calls() []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Call(nil), c.calls...)
}

// CallCount counts the requests of the named operation.
func (c *Client) CallCount(op string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, call := range c.calls {
		if call.Operation == op {
			n++
		}
	}
	return n
}

// Items returns a copy of the items stored in a table.
func (c *Client) Items(tableName string) []map[string]types.AttributeValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, item := range t.sorted(t.partitionKey, t.sortKey) {
		out = append(out, copyItem(item))
	}
	return out
}

// begin records a call and returns the injected error for it, if any.
// The caller must hold the write lock.
func (c *Client) begin(op, tableName string, input any) error {
	c.calls = append(c.calls, Call{Operation: op, Table: tableName, Input: input})
	if queued := c.pending[op]; len(queued) > 0 {
		c.pending[op] = queued[1:]
		return queued[0]
	}
	return c.errs[op]
}

func (c *Client) lookup(name *string) (*table, error) {
	t, ok := c.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String(fmt.Sprintf("table %s not found", aws.ToString(name)))}
	}
	return t, nil
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: fmt.Sprintf(format, args...)}
}

func conditionalCheckFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// storageKey identifies an item by its primary key attributes.
func (t *table) storageKey(item map[string]types.AttributeValue) (string, error) {
	pk, ok := item[t.partitionKey]
	if !ok {
		return "", validationError("missing partition key %s", t.partitionKey)
	}
	key := scalarString(pk)
	if t.sortKey != "" {
		sk, ok := item[t.sortKey]
		if !ok {
			return "", validationError("missing sort key %s", t.sortKey)
		}
		key += "\x00" + scalarString(sk)
	}
	return key, nil
}

func (t *table) index(name string) (indexDef, bool) {
	for _, idx := range t.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return indexDef{}, false
}

// sorted returns the items holding pk (and sk when set), ordered by those
// attributes and then by the table key.
func (t *table) sorted(pk, sk string) []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, item := range t.items {
		if _, ok := item[pk]; !ok {
			continue
		}
		if sk != "" {
			if _, ok := item[sk]; !ok {
				continue
			}
		}
		items = append(items, item)
	}

	order := []string{pk}
	if sk != "" {
		order = append(order, sk)
	}
	order = append(order, t.partitionKey)
	if t.sortKey != "" {
		order = append(order, t.sortKey)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return compareBy(items[i], items[j], order) < 0
	})
	return items
}

func compareBy(a, b map[string]types.AttributeValue, attrs []string) int {
	for _, attr := range attrs {
		av, aok := a[attr]
		bv, bok := b[attr]
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return -1
		case !bok:
			return 1
		}
		if c, ok := compareValues(av, bv); ok && c != 0 {
			return c
		}
	}
	return 0
}

func scalarString(v types.AttributeValue) string {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return tv.Value
	case *types.AttributeValueMemberN:
		return tv.Value
	case *types.AttributeValueMemberB:
		return string(tv.Value)
	}
	return fmt.Sprintf("%v", v)
}

func (t *table) checkKeyTypes(item map[string]types.AttributeValue) error {
	for _, name := range []string{t.partitionKey, t.sortKey} {
		if name == "" {
			continue
		}
		switch item[name].(type) {
		case *types.AttributeValueMemberS, *types.AttributeValueMemberN, *types.AttributeValueMemberB:
		default:
			return validationError("key attribute %s must be a scalar", name)
		}
	}
	return nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	if aws.ToString(expr) == "" {
		return nil
	}
	cond, err := parseCondition(*expr, env{names: names, values: values})
	if err != nil {
		return validationError("%v", err)
	}
	if item == nil {
		item = map[string]types.AttributeValue{}
	}
	ok, err := cond(item)
	if err != nil {
		return validationError("%v", err)
	}
	if !ok {
		return conditionalCheckFailed()
	}
	return nil
}

func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("GetItem", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.storageKey(params.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: copyItem(t.items[key])}, nil
}

func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("PutItem", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.storageKey(params.Item)
	if err != nil {
		return nil, err
	}
	if err := t.checkKeyTypes(params.Item); err != nil {
		return nil, err
	}

	old := t.items[key]
	if err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}

	t.items[key] = copyItem(params.Item)
	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = copyItem(old)
	}
	return out, nil
}

func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("DeleteItem", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.storageKey(params.Key)
	if err != nil {
		return nil, err
	}

	old := t.items[key]
	if err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}

	delete(t.items, key)
	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = copyItem(old)
	}
	return out, nil
}

func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("UpdateItem", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.storageKey(params.Key)
	if err != nil {
		return nil, err
	}

	old := t.items[key]
	if err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}

	assignments, err := parseUpdate(aws.ToString(params.UpdateExpression), env{
		names:  params.ExpressionAttributeNames,
		values: params.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, validationError("%v", err)
	}

	updated := copyItem(old)
	if updated == nil {
		updated = copyItem(params.Key)
	}
	for _, a := range assignments {
		if a.name == t.partitionKey || a.name == t.sortKey {
			return nil, validationError("cannot update key attribute %s", a.name)
		}
		if a.remove {
			delete(updated, a.name)
			continue
		}
		// operands read the item as it was before the update
		v, ok, err := a.value(orEmpty(old))
		if err != nil {
			return nil, validationError("%v", err)
		}
		if !ok {
			return nil, validationError("update operand for %s is missing", a.name)
		}
		updated[a.name] = v
	}
	t.items[key] = updated

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(updated)
	case types.ReturnValueAllOld:
		out.Attributes = copyItem(old)
	}
	return out, nil
}

func orEmpty(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return map[string]types.AttributeValue{}
	}
	return item
}

func (c *Client) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	if err := c.begin("CreateTable", name, params); err != nil {
		return nil, err
	}
	if _, exists := c.tables[name]; exists {
		return nil, &types.ResourceInUseException{Message: aws.String(fmt.Sprintf("table %s already exists", name))}
	}

	pk, sk := keyNames(params.KeySchema)
	if pk == "" {
		return nil, validationError("table %s has no hash key", name)
	}
	t := &table{
		name:         name,
		partitionKey: pk,
		sortKey:      sk,
		createdAt:    time.Now(),
		items:        make(map[string]map[string]types.AttributeValue),
	}
	for _, gsi := range params.GlobalSecondaryIndexes {
		ipk, isk := keyNames(gsi.KeySchema)
		t.indexes = append(t.indexes, indexDef{name: aws.ToString(gsi.IndexName), partitionKey: ipk, sortKey: isk})
	}
	c.tables[name] = t

	return &dynamodb.CreateTableOutput{TableDescription: t.describe()}, nil
}

func keyNames(elems []types.KeySchemaElement) (pk, sk string) {
	for _, e := range elems {
		switch e.KeyType {
		case types.KeyTypeHash:
			pk = aws.ToString(e.AttributeName)
		case types.KeyTypeRange:
			sk = aws.ToString(e.AttributeName)
		}
	}
	return pk, sk
}

func keySchema(pk, sk string) []types.KeySchemaElement {
	elems := []types.KeySchemaElement{{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash}}
	if sk != "" {
		elems = append(elems, types.KeySchemaElement{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange})
	}
	return elems
}

func (t *table) describe() *types.TableDescription {
	desc := &types.TableDescription{
		TableName:        aws.String(t.name),
		TableStatus:      types.TableStatusActive,
		KeySchema:        keySchema(t.partitionKey, t.sortKey),
		ItemCount:        aws.Int64(int64(len(t.items))),
		CreationDateTime: aws.Time(t.createdAt),
	}
	for _, idx := range t.indexes {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:   aws.String(idx.name),
			KeySchema:   keySchema(idx.partitionKey, idx.sortKey),
			IndexStatus: types.IndexStatusActive,
			Projection:  &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return desc
}

func (c *Client) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("DeleteTable", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	delete(c.tables, t.name)

	desc := t.describe()
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: desc}, nil
}

func (c *Client) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("DescribeTable", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: t.describe()}, nil
}

// TableNames lists the tables in name order.
func (c *Client) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
