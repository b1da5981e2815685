/*
Package models defines the result and option types shared by mappeddb operations.

Key Types:

Page:
One page of typed results from a query or scan:

	page, err := users.Query(ctx, operation.QueryRequest{
	    Partition: "USER#123",
	    Limit:     25,
	})
	for _, u := range page.Items {
	    ...
	}
	if page.HasMore() {
	    next := page.LastEvaluatedKey
	}

StreamResult:
Results from streaming operations with metadata:

	type StreamResult[T any] struct {
	    Item  T                               // The typed item
	    Raw   map[string]types.AttributeValue // Raw DynamoDB attributes
	    Error error                           // Item-specific error, if any
	    Meta  StreamMeta                      // Metadata about this item
	}

StreamOptions:
Configuration for streaming behavior:

	opts := []StreamOption{
	    WithBufferSize(100),
	    WithPageSize(25),
	    WithMaxRetries(3),
	    WithProgressHandler(progressFunc),
	}
*/
package models
