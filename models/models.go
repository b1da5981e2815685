/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Page is one page of typed query or scan results.
type Page[T any] struct {
	// Items holds the decoded items of this page, in the order DynamoDB returned them.
	Items []T
	// LastEvaluatedKey is the exclusive start key of the next page, nil on the last page.
	LastEvaluatedKey map[string]types.AttributeValue
	// Count is the number of items after filtering.
	Count int32
	// ScannedCount is the number of items evaluated before filtering.
	ScannedCount int32
}

// HasMore reports whether another page can be requested.
func (p Page[T]) HasMore() bool {
	return len(p.LastEvaluatedKey) > 0
}

// BatchGetResult holds the items found by a batch get and the keys DynamoDB did not process.
type BatchGetResult[T any] struct {
	Items           []T
	UnprocessedKeys []map[string]types.AttributeValue
}

// BatchWriteResult reports how many write requests were accepted and which were not processed.
type BatchWriteResult struct {
	// Written counts the requests DynamoDB accepted.
	Written int
	// Unprocessed holds the requests DynamoDB returned as unprocessed. They are not resubmitted.
	Unprocessed []types.WriteRequest
}
