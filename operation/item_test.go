/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mderrors "github.com/suparena/mappeddb/errors"
	"github.com/suparena/mappeddb/internal/testmodels"
	"github.com/suparena/mappeddb/mock"
	"github.com/suparena/mappeddb/operation"
	"github.com/suparena/mappeddb/schema"
)

func TestGetItem(t *testing.T) {
	ctx := context.Background()
	c := newClient()
	putUsers(t, c, user("u1"))

	t.Run("found", func(t *testing.T) {
		got, err := operation.GetItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
		}.Execute(ctx, c)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1@example.com", got.Email)
		assert.True(t, baseTime.Equal(got.CreatedAt.Time()))
	})

	t.Run("not found", func(t *testing.T) {
		got, err := operation.GetItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "nobody"),
		}.Execute(ctx, c)
		assert.Nil(t, got)
		require.Error(t, err)
		assert.True(t, mderrors.IsNotFound(err))

		var nf *mderrors.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "User", nf.Type)
		assert.Equal(t, "USER#nobody|USER#nobody", nf.Key)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := operation.GetItem[testmodels.User]{Schema: userSchema, Key: userKey(t, "u1")}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))

		_, err = operation.GetItem[testmodels.User]{Table: testmodels.TableName, Key: userKey(t, "u1")}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))

		_, err = operation.GetItem[testmodels.User]{Table: testmodels.TableName, Schema: userSchema}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))
	})

	t.Run("client error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		c.FailNext("GetItem", boom)
		_, err := operation.GetItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
		}.Execute(ctx, c)
		assert.ErrorIs(t, err, boom)
	})
}

func TestPutItem(t *testing.T) {
	ctx := context.Background()

	t.Run("writes keys and entity type", func(t *testing.T) {
		c := newClient()
		putUsers(t, c, user("u1"))

		items := c.Items(testmodels.TableName)
		require.Len(t, items, 1)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#u1"}, items[0]["PK"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "EMAIL#u1@example.com"}, items[0]["GSI1PK"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "User"}, items[0]["EntityType"])
	})

	t.Run("replaces by default", func(t *testing.T) {
		c := newClient()
		u := user("u1")
		putUsers(t, c, u)
		u.Name = "Renamed"
		putUsers(t, c, u)

		items := c.Items(testmodels.TableName)
		require.Len(t, items, 1)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Renamed"}, items[0]["Name"])
	})

	t.Run("if not exists", func(t *testing.T) {
		c := newClient()
		op := operation.PutItem[testmodels.User]{
			Table:       testmodels.TableName,
			Schema:      userSchema,
			Item:        user("u1"),
			IfNotExists: true,
		}
		_, err := op.Execute(ctx, c)
		require.NoError(t, err)

		_, err = op.Execute(ctx, c)
		require.Error(t, err)
		assert.True(t, mderrors.IsAlreadyExists(err))
		assert.Contains(t, err.Error(), "USER#u1")
	})

	t.Run("condition failure keeps the cause", func(t *testing.T) {
		c := newClient()
		putUsers(t, c, user("u1"))

		_, err := operation.PutItem[testmodels.User]{
			Table:     testmodels.TableName,
			Schema:    userSchema,
			Item:      user("u1"),
			Condition: expression.Name("Status").Equal(expression.Value("ACTIVE")),
		}.Execute(ctx, c)
		require.Error(t, err)
		assert.True(t, mderrors.IsConditionFailed(err))
		assert.False(t, mderrors.IsAlreadyExists(err))

		var ccf *types.ConditionalCheckFailedException
		assert.ErrorAs(t, err, &ccf)
	})

	t.Run("missing key fields", func(t *testing.T) {
		_, err := operation.PutItem[testmodels.Order]{
			Table:  testmodels.TableName,
			Schema: orderSchema,
			Item:   testmodels.Order{UserID: "u1"},
		}.Execute(ctx, newClient())
		assert.True(t, mderrors.IsValidationError(err))
	})
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	c := newClient()
	putUsers(t, c, user("u1"))

	old, err := operation.DeleteItem[testmodels.User]{
		Table:  testmodels.TableName,
		Schema: userSchema,
		Key:    userKey(t, "u1"),
	}.Execute(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, "u1", old.ID)
	assert.Empty(t, c.Items(testmodels.TableName))

	old, err = operation.DeleteItem[testmodels.User]{
		Table:  testmodels.TableName,
		Schema: userSchema,
		Key:    userKey(t, "u1"),
	}.Execute(ctx, c)
	assert.NoError(t, err)
	assert.Nil(t, old)

	t.Run("conditional", func(t *testing.T) {
		putUsers(t, c, user("u2"))
		_, err := operation.DeleteItem[testmodels.User]{
			Table:     testmodels.TableName,
			Schema:    userSchema,
			Key:       userKey(t, "u2"),
			Condition: expression.Name("Status").Equal(expression.Value("INACTIVE")),
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsConditionFailed(err))
		assert.Len(t, c.Items(testmodels.TableName), 1)
	})
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	c := newClient()
	putUsers(t, c, user("u1"))

	t.Run("set and update builder", func(t *testing.T) {
		got, err := operation.UpdateItem[testmodels.User]{
			Table:     testmodels.TableName,
			Schema:    userSchema,
			Key:       userKey(t, "u1"),
			Update:    expression.Set(expression.Name("Status"), expression.Value("ACTIVE")),
			Set:       map[string]any{"Name": "Ada"},
			MustExist: true,
		}.Execute(ctx, c)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Ada", got.Name)
		assert.Equal(t, "ACTIVE", got.Status)
		assert.Equal(t, "u1@example.com", got.Email)
	})

	t.Run("must exist", func(t *testing.T) {
		_, err := operation.UpdateItem[testmodels.User]{
			Table:     testmodels.TableName,
			Schema:    userSchema,
			Key:       userKey(t, "ghost"),
			Set:       map[string]any{"Name": "Nobody"},
			MustExist: true,
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsConditionFailed(err))
		assert.Len(t, c.Items(testmodels.TableName), 1)
	})

	t.Run("upsert without must exist", func(t *testing.T) {
		got, err := operation.UpdateItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u9"),
			Set:    map[string]any{"Name": "New"},
		}.Execute(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "New", got.Name)
		assert.Len(t, c.Items(testmodels.TableName), 2)
	})

	t.Run("key attributes are rejected", func(t *testing.T) {
		_, err := operation.UpdateItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
			Set:    map[string]any{"SK": "other"},
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := operation.UpdateItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))
	})
}

type ticket struct {
	ID       string `dynamodbav:"Id"`
	Queue    string `dynamodbav:"Queue"`
	Priority int    `dynamodbav:"Priority"`
}

var ticketSchema = schema.MustNew[ticket]("Ticket",
	schema.WithPartitionKey("PK", "TICKET#{Id}"),
	schema.WithSortKey("SK", "TICKET#{Id}"),
	schema.WithIndex("GSI1", "GSI1PK", "QUEUE#{Queue}", "GSI1SK", "{Priority}"),
)

func storedItem(t *testing.T, c *mock.Client, pk string) map[string]types.AttributeValue {
	t.Helper()
	for _, item := range c.Items(testmodels.TableName) {
		if v, ok := item["PK"].(*types.AttributeValueMemberS); ok && v.Value == pk {
			return item
		}
	}
	t.Fatalf("no item with PK %s", pk)
	return nil
}

func TestUpdateItemIndexKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("index key follows the updated field", func(t *testing.T) {
		c := newClient()
		putUsers(t, c, user("u1"))

		got, err := operation.UpdateItem[testmodels.User]{
			Table:     testmodels.TableName,
			Schema:    userSchema,
			Key:       userKey(t, "u1"),
			Set:       map[string]any{"Email": "ada@new.io"},
			MustExist: true,
		}.Execute(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "ada@new.io", got.Email)

		stored := storedItem(t, c, "USER#u1")
		assert.Equal(t, &types.AttributeValueMemberS{Value: "EMAIL#ada@new.io"}, stored["GSI1PK"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER"}, stored["GSI1SK"])

		for partition, want := range map[string]int{"EMAIL#ada@new.io": 1, "EMAIL#u1@example.com": 0} {
			page, err := operation.Query[testmodels.User]{
				Table:   testmodels.TableName,
				Schema:  userSchema,
				Request: operation.QueryRequest{IndexName: "GSI1", Partition: partition},
			}.Execute(ctx, c)
			require.NoError(t, err)
			assert.Len(t, page.Items, want, partition)
		}
	})

	t.Run("every field of the index key is required", func(t *testing.T) {
		c := newClient()
		_, err := operation.PutItem[ticket]{Table: testmodels.TableName, Schema: ticketSchema,
			Item: ticket{ID: "t1", Queue: "billing", Priority: 2}}.Execute(ctx, c)
		require.NoError(t, err)
		key, err := ticketSchema.KeyFromString("t1")
		require.NoError(t, err)

		_, err = operation.UpdateItem[ticket]{
			Table:  testmodels.TableName,
			Schema: ticketSchema,
			Key:    key,
			Set:    map[string]any{"Queue": "support"},
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))
		assert.Zero(t, c.CallCount("UpdateItem"))

		got, err := operation.UpdateItem[ticket]{
			Table:  testmodels.TableName,
			Schema: ticketSchema,
			Key:    key,
			Set:    map[string]any{"Queue": "support", "Priority": 5},
		}.Execute(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "support", got.Queue)

		stored := storedItem(t, c, "TICKET#t1")
		assert.Equal(t, &types.AttributeValueMemberS{Value: "QUEUE#support"}, stored["GSI1PK"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "5"}, stored["GSI1SK"])
	})

	t.Run("empty value leaves the sparse index", func(t *testing.T) {
		c := newClient()
		putUsers(t, c, user("u1"))

		_, err := operation.UpdateItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
			Set:    map[string]any{"Email": ""},
		}.Execute(ctx, c)
		require.NoError(t, err)

		stored := storedItem(t, c, "USER#u1")
		assert.NotContains(t, stored, "GSI1PK")
		assert.NotContains(t, stored, "GSI1SK")
	})

	t.Run("primary key fields are rejected", func(t *testing.T) {
		c := newClient()
		putUsers(t, c, user("u1"))

		_, err := operation.UpdateItem[testmodels.User]{
			Table:  testmodels.TableName,
			Schema: userSchema,
			Key:    userKey(t, "u1"),
			Set:    map[string]any{"Id": "u2"},
		}.Execute(ctx, c)
		assert.True(t, mderrors.IsValidationError(err))
	})
}

func TestFuncAndErase(t *testing.T) {
	ctx := context.Background()
	c := newClient()

	fn := operation.Func[int]{
		Table: testmodels.TableName,
		Fn: func(ctx context.Context, client operation.Client) (int, error) {
			return len(client.(interface{ TableNames() []string }).TableNames()), nil
		},
	}
	assert.Equal(t, "Func", fn.Name())
	assert.Equal(t, "Count", operation.Func[int]{OpName: "Count"}.Name())

	cmd := operation.Erase[int](fn)
	assert.Equal(t, "Func", cmd.Name())
	assert.Equal(t, testmodels.TableName, cmd.TableName())

	out, err := cmd.Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	assert.IsType(t, operation.Func[int]{}, operation.Unwrap(cmd))

	get := operation.GetItem[testmodels.User]{Table: testmodels.TableName, Schema: userSchema, Key: userKey(t, "u1")}
	assert.IsType(t, get, operation.Unwrap(operation.Erase[*testmodels.User](get)))
}
