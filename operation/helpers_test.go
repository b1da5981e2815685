/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/suparena/mappeddb/internal/testmodels"
	"github.com/suparena/mappeddb/mock"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

var (
	userSchema  = testmodels.UserSchema()
	orderSchema = testmodels.OrderSchema()

	registerOnce sync.Once
)

// registerDecoders makes users and orders decodable by schema.Decode.
func registerDecoders() {
	registerOnce.Do(func() {
		schema.RegisterDecoder(userSchema)
		schema.RegisterDecoder(orderSchema)
	})
}

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newClient() *mock.Client {
	return mock.NewClient().WithTable(testmodels.TableName, "PK", "SK",
		mock.IndexSpec{Name: "GSI1", PartitionKey: "GSI1PK", SortKey: "GSI1SK"})
}

func user(id string) testmodels.User {
	return testmodels.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "User " + id,
		CreatedAt: schema.NewDateTime(baseTime),
	}
}

// order i of a user is created i hours after baseTime.
func order(userID string, i int, status string) testmodels.Order {
	return testmodels.Order{
		UserID:    userID,
		OrderID:   fmt.Sprintf("o%02d", i),
		Total:     float64(i) * 10,
		Status:    status,
		CreatedAt: schema.NewDateTime(baseTime.Add(time.Duration(i) * time.Hour)),
	}
}

func putUsers(t *testing.T, c operation.Client, users ...testmodels.User) {
	t.Helper()
	for _, u := range users {
		_, err := operation.PutItem[testmodels.User]{Table: testmodels.TableName, Schema: userSchema, Item: u}.
			Execute(context.Background(), c)
		require.NoError(t, err)
	}
}

func putOrders(t *testing.T, c operation.Client, orders ...testmodels.Order) {
	t.Helper()
	for _, o := range orders {
		_, err := operation.PutItem[testmodels.Order]{Table: testmodels.TableName, Schema: orderSchema, Item: o}.
			Execute(context.Background(), c)
		require.NoError(t, err)
	}
}

func userKey(t *testing.T, id string) schema.Item {
	t.Helper()
	key, err := userSchema.KeyFromString(id)
	require.NoError(t, err)
	return key
}
