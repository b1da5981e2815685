/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/internal/testmodels"
	"github.com/suparena/mappeddb/mock"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

func orderIDs(orders []testmodels.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	return ids
}

// seedPartition stores users u1 and u2, five orders of u1 (odd ones OPEN)
// and one OPEN order of u2.
func seedPartition(t *testing.T) *mock.Client {
	c := newClient()
	putUsers(t, c, user("u1"), user("u2"))
	for i := 0; i < 5; i++ {
		status := "DONE"
		if i%2 == 1 {
			status = "OPEN"
		}
		putOrders(t, c, order("u1", i, status))
	}
	putOrders(t, c, order("u2", 7, "OPEN"))
	return c
}

func queryOrders(t *testing.T, c operation.Client, req operation.QueryRequest) []testmodels.Order {
	t.Helper()
	page, err := operation.Query[testmodels.Order]{
		Table:   testmodels.TableName,
		Schema:  orderSchema,
		Request: req,
	}.Execute(context.Background(), c)
	require.NoError(t, err)
	return page.Items
}

func TestQuery(t *testing.T) {
	c := seedPartition(t)

	t.Run("partition skips other entity types", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{Partition: "USER#u1"})
		assert.Equal(t, []string{"o00", "o01", "o02", "o03", "o04"}, orderIDs(got))
	})

	t.Run("sort prefix", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Sort:      operation.SortBeginsWith("ORDER#"),
		})
		assert.Len(t, got, 5)
	})

	t.Run("descending", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{
			Partition:  "USER#u1",
			Sort:       operation.SortBeginsWith("ORDER#"),
			Descending: true,
		})
		assert.Equal(t, []string{"o04", "o03", "o02", "o01", "o00"}, orderIDs(got))
	})

	t.Run("filter", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Filter:    expression.Name("Total").GreaterThanEqual(expression.Value(30)),
		})
		assert.Equal(t, []string{"o03", "o04"}, orderIDs(got))
	})

	t.Run("time range", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Sort:      operation.SortAfter("ORDER#", baseTime.Add(2*time.Hour)),
		})
		assert.Equal(t, []string{"o02", "o03", "o04"}, orderIDs(got))

		got = queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Sort:      operation.SortBefore("ORDER#", baseTime.Add(time.Hour)),
		})
		assert.Equal(t, []string{"o00", "o01"}, orderIDs(got))

		got = queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Sort:      operation.SortBetweenTimes("ORDER#", baseTime.Add(time.Hour), baseTime.Add(3*time.Hour)),
		})
		assert.Equal(t, []string{"o01", "o02", "o03"}, orderIDs(got))

		got = queryOrders(t, c, operation.QueryRequest{
			Partition: "USER#u1",
			Sort:      operation.SortOnDay("ORDER#", baseTime.Add(time.Hour)),
		})
		assert.Len(t, got, 5)
	})

	t.Run("index", func(t *testing.T) {
		got := queryOrders(t, c, operation.QueryRequest{
			IndexName: "GSI1",
			Partition: "STATUS#OPEN",
		})
		assert.Equal(t, []string{"o01", "o03", "o07"}, orderIDs(got))

		got = queryOrders(t, c, operation.QueryRequest{
			IndexName: "GSI1",
			Partition: "STATUS#OPEN",
			Sort:      operation.SortAfter("", baseTime.Add(3*time.Hour)),
		})
		assert.Equal(t, []string{"o03", "o07"}, orderIDs(got))
	})

	t.Run("pagination", func(t *testing.T) {
		op := operation.Query[testmodels.Order]{
			Table:  testmodels.TableName,
			Schema: orderSchema,
			Request: operation.QueryRequest{
				Partition: "USER#u1",
				Sort:      operation.SortBeginsWith("ORDER#"),
				Limit:     2,
			},
		}

		var all []testmodels.Order
		pages := 0
		for {
			page, err := op.Execute(context.Background(), c)
			require.NoError(t, err)
			pages++
			all = append(all, page.Items...)
			if !page.HasMore() {
				break
			}
			op.Request.StartKey = page.LastEvaluatedKey
		}
		assert.Equal(t, 3, pages)
		assert.Equal(t, []string{"o00", "o01", "o02", "o03", "o04"}, orderIDs(all))
	})
}

func TestQueryInput(t *testing.T) {
	ctx := context.Background()
	c := seedPartition(t)

	lastQuery := func() *dynamodb.QueryInput {
		calls := c.Calls()
		return calls[len(calls)-1].Input.(*dynamodb.QueryInput)
	}

	queryOrders(t, c, operation.QueryRequest{Partition: "USER#u1", ConsistentRead: true})
	require.NotNil(t, lastQuery().ConsistentRead)
	assert.True(t, *lastQuery().ConsistentRead)
	assert.Nil(t, lastQuery().Limit)

	queryOrders(t, c, operation.QueryRequest{IndexName: "GSI1", Partition: "STATUS#OPEN", ConsistentRead: true})
	assert.Nil(t, lastQuery().ConsistentRead, "indexes only support eventually consistent reads")
	assert.Equal(t, "GSI1", *lastQuery().IndexName)

	t.Run("validation", func(t *testing.T) {
		noSort := schema.MustNew[testmodels.User]("User",
			schema.WithPartitionKey("PK", "USER#{Id}"),
			schema.WithIndex("GSI2", "GSI2PK", "NAME#{Name}", "", ""),
		)

		tests := []struct {
			name string
			req  operation.QueryRequest
		}{
			{"no partition", operation.QueryRequest{}},
			{"unknown index", operation.QueryRequest{IndexName: "GSI9", Partition: "X"}},
			{"sort without sort key", operation.QueryRequest{IndexName: "GSI2", Partition: "X", Sort: operation.SortEquals("Y")}},
			{"table sort without sort key", operation.QueryRequest{Partition: "X", Sort: operation.SortGreaterThan("Y")}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := operation.Query[testmodels.User]{
					Table:   testmodels.TableName,
					Schema:  noSort,
					Request: tt.req,
				}.Execute(ctx, c)
				assert.True(t, mderrors.IsValidationError(err), "got %v", err)
			})
		}
	})
}

func TestQueryEntities(t *testing.T) {
	registerDecoders()
	c := seedPartition(t)

	page, err := operation.QueryEntities[testmodels.User]{
		Table:   testmodels.TableName,
		Schema:  userSchema,
		Request: operation.QueryRequest{Partition: "USER#u1"},
	}.Execute(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, page.Items, 6)

	var users, orders int
	for _, item := range page.Items {
		switch v := item.(type) {
		case *testmodels.User:
			users++
			assert.Equal(t, "u1", v.ID)
		case *testmodels.Order:
			orders++
		default:
			t.Fatalf("unexpected item type %T", item)
		}
	}
	assert.Equal(t, 1, users)
	assert.Equal(t, 5, orders)
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	c := seedPartition(t)

	t.Run("whole table by entity type", func(t *testing.T) {
		page, err := operation.Scan[testmodels.User]{Table: testmodels.TableName, Schema: userSchema}.Execute(ctx, c)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int32(8), page.ScannedCount)
	})

	t.Run("segments cover the table", func(t *testing.T) {
		total := 0
		for segment := int32(0); segment < 4; segment++ {
			page, err := operation.Scan[testmodels.Order]{
				Table:   testmodels.TableName,
				Schema:  orderSchema,
				Request: operation.ScanRequest{Segment: segment, TotalSegments: 4},
			}.Execute(ctx, c)
			require.NoError(t, err)
			total += len(page.Items)
		}
		assert.Equal(t, 6, total)
	})

	t.Run("index with filter", func(t *testing.T) {
		page, err := operation.Scan[testmodels.Order]{
			Table:  testmodels.TableName,
			Schema: orderSchema,
			Request: operation.ScanRequest{
				IndexName: "GSI1",
				Filter:    expression.Name("UserId").Equal(expression.Value("u1")),
			},
		}.Execute(ctx, c)
		require.NoError(t, err)
		// index order: GSI1PK first, then the creation time
		assert.Equal(t, []string{"o00", "o02", "o04", "o01", "o03"}, orderIDs(page.Items))
	})

	t.Run("validation", func(t *testing.T) {
		for _, req := range []operation.ScanRequest{
			{Segment: 4, TotalSegments: 4},
			{Segment: -1, TotalSegments: 2},
			{TotalSegments: -1},
			{IndexName: "GSI9"},
		} {
			_, err := operation.Scan[testmodels.Order]{
				Table:   testmodels.TableName,
				Schema:  orderSchema,
				Request: req,
			}.Execute(ctx, c)
			assert.True(t, mderrors.IsValidationError(err), "request %+v", req)
		}
	})
}
