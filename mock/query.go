/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"
	"hash/fnv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const maxBatchGet, maxBatchWrite = 100, 25

// view is the table or one of its indexes, as seen by a query or scan.
type view struct {
	items []map[string]types.AttributeValue
	order []string
	keys  []string
}

func (t *table) view(indexName *string) (view, error) {
	pk, sk := t.partitionKey, t.sortKey
	if name := aws.ToString(indexName); name != "" {
		idx, ok := t.index(name)
		if !ok {
			return view{}, validationError("table %s has no index %s", t.name, name)
		}
		pk, sk = idx.partitionKey, idx.sortKey
	}

	order := []string{pk}
	if sk != "" {
		order = append(order, sk)
	}
	keys := append([]string(nil), order...)
	for _, k := range []string{t.partitionKey, t.sortKey} {
		if k != "" && k != pk && k != sk {
			keys = append(keys, k)
		}
	}
	return view{items: t.sorted(pk, sk), order: append(order, t.partitionKey, t.sortKey), keys: keys}, nil
}

type pageRequest struct {
	startKey   map[string]types.AttributeValue
	limit      int32
	descending bool
	filter     condNode
}

type pageResult struct {
	items   []map[string]types.AttributeValue
	lastKey map[string]types.AttributeValue
	scanned int32
}

// page walks candidates from the exclusive start key, evaluating at most
// limit items and keeping those that pass the filter.
func (v view) page(candidates []map[string]types.AttributeValue, req pageRequest) (pageResult, error) {
	if req.descending {
		reversed := make([]map[string]types.AttributeValue, len(candidates))
		for i, item := range candidates {
			reversed[len(candidates)-1-i] = item
		}
		candidates = reversed
	}

	start := 0
	if len(req.startKey) > 0 {
		start = len(candidates)
		for i, item := range candidates {
			c := compareBy(item, req.startKey, v.order)
			if (!req.descending && c > 0) || (req.descending && c < 0) {
				start = i
				break
			}
		}
	}

	var res pageResult
	for i := start; i < len(candidates); i++ {
		if req.limit > 0 && res.scanned == req.limit {
			res.lastKey = v.keyOf(candidates[i-1])
			break
		}
		item := candidates[i]
		res.scanned++

		if req.filter != nil {
			ok, err := req.filter(item)
			if err != nil {
				return pageResult{}, validationError("%v", err)
			}
			if !ok {
				continue
			}
		}
		res.items = append(res.items, copyItem(item))
	}
	return res, nil
}

func (v view) keyOf(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue, len(v.keys))
	for _, k := range v.keys {
		if val, ok := item[k]; ok {
			key[k] = val
		}
	}
	return key
}

func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	if err := c.begin("Query", aws.ToString(params.TableName), params); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if fn := c.QueryFunc; fn != nil {
		c.mu.Unlock()
		return fn(ctx, params)
	}
	defer c.mu.Unlock()

	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	v, err := t.view(params.IndexName)
	if err != nil {
		return nil, err
	}

	e := env{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	if aws.ToString(params.KeyConditionExpression) == "" {
		return nil, validationError("query needs a key condition expression")
	}
	keyCond, err := parseCondition(*params.KeyConditionExpression, e)
	if err != nil {
		return nil, validationError("%v", err)
	}

	var matching []map[string]types.AttributeValue
	for _, item := range v.items {
		ok, err := keyCond(item)
		if err != nil {
			return nil, validationError("%v", err)
		}
		if ok {
			matching = append(matching, item)
		}
	}

	req := pageRequest{
		startKey:   params.ExclusiveStartKey,
		limit:      aws.ToInt32(params.Limit),
		descending: params.ScanIndexForward != nil && !*params.ScanIndexForward,
	}
	if expr := aws.ToString(params.FilterExpression); expr != "" {
		if req.filter, err = parseCondition(expr, e); err != nil {
			return nil, validationError("%v", err)
		}
	}

	res, err := v.page(matching, req)
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.lastKey,
	}, nil
}

func (c *Client) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("Scan", aws.ToString(params.TableName), params); err != nil {
		return nil, err
	}
	t, err := c.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	v, err := t.view(params.IndexName)
	if err != nil {
		return nil, err
	}

	candidates := v.items
	if total := aws.ToInt32(params.TotalSegments); total > 0 {
		segment := uint32(aws.ToInt32(params.Segment))
		candidates = nil
		for _, item := range v.items {
			h := fnv.New32a()
			h.Write([]byte(scalarString(item[t.partitionKey])))
			if h.Sum32()%uint32(total) == segment {
				candidates = append(candidates, item)
			}
		}
	}

	req := pageRequest{startKey: params.ExclusiveStartKey, limit: aws.ToInt32(params.Limit)}
	if expr := aws.ToString(params.FilterExpression); expr != "" {
		e := env{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
		if req.filter, err = parseCondition(expr, e); err != nil {
			return nil, validationError("%v", err)
		}
	}

	res, err := v.page(candidates, req)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.lastKey,
	}, nil
}

func (c *Client) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin("BatchGetItem", firstTable(params.RequestItems), params); err != nil {
		return nil, err
	}

	total := 0
	for _, req := range params.RequestItems {
		total += len(req.Keys)
	}
	if total > maxBatchGet {
		return nil, validationError("too many items requested for the BatchGetItem call")
	}

	out := &dynamodb.BatchGetItemOutput{Responses: make(map[string][]map[string]types.AttributeValue)}
	for name, req := range params.RequestItems {
		t, err := c.lookup(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, key := range req.Keys {
			sk, err := t.storageKey(key)
			if err != nil {
				return nil, err
			}
			if item, ok := t.items[sk]; ok {
				out.Responses[name] = append(out.Responses[name], copyItem(item))
			}
		}
	}
	return out, nil
}

func (c *Client) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	c.mu.Lock()
	if err := c.begin("BatchWriteItem", firstTable(params.RequestItems), params); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if fn := c.BatchWriteFunc; fn != nil {
		c.mu.Unlock()
		return fn(ctx, params)
	}
	defer c.mu.Unlock()

	total := 0
	for _, reqs := range params.RequestItems {
		total += len(reqs)
	}
	if total > maxBatchWrite {
		return nil, validationError("too many items requested for the BatchWriteItem call")
	}

	// validate everything before applying anything
	for name, reqs := range params.RequestItems {
		t, err := c.lookup(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			switch {
			case req.PutRequest != nil:
				if _, err := t.storageKey(req.PutRequest.Item); err != nil {
					return nil, err
				}
			case req.DeleteRequest != nil:
				if _, err := t.storageKey(req.DeleteRequest.Key); err != nil {
					return nil, err
				}
			default:
				return nil, validationError("write request has neither put nor delete")
			}
		}
	}

	for name, reqs := range params.RequestItems {
		t := c.tables[name]
		for _, req := range reqs {
			if req.PutRequest != nil {
				key, _ := t.storageKey(req.PutRequest.Item)
				t.items[key] = copyItem(req.PutRequest.Item)
				continue
			}
			key, _ := t.storageKey(req.DeleteRequest.Key)
			delete(t.items, key)
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func firstTable[V any](requests map[string]V) string {
	for name := range requests {
		return name
	}
	return ""
}
