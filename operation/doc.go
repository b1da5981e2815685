/*
Package operation defines the commands executed by a mappeddb database.

Each operation is a plain struct naming its table, the schema of its items
and its request parameters. Its Execute method sends the request through a
Client and returns a result whose type is fixed by the operation:

	GetItem[T]        *T, NotFoundError when the key is absent
	PutItem[T]        struct{}
	DeleteItem[T]     *T holding the deleted item, nil when nothing was deleted
	UpdateItem[T]     *T holding the updated item
	Query[T], Scan[T] models.Page[T]
	QueryEntities[T]  models.Page[any] decoded through the type registry
	QueryStream[T]    <-chan models.StreamResult[T]
	BatchGetItem[T]   models.BatchGetResult[T]
	BatchWriteItem[T] models.BatchWriteResult
	CreateTable[T]    *types.TableDescription
	DeleteTable       struct{}
	DescribeTable     *types.TableDescription
	Func[R]           whatever the function returns

Go cannot infer R from a struct literal, so typed execution names it:

	user, err := mappeddb.Execute[*User](ctx, db, operation.GetItem[User]{
	    Table:  "app",
	    Schema: userSchema,
	    Key:    userSchema.Key("USER#42", "USER#42"),
	})

Failed conditions are reported as errors.ConditionFailedError. Retries are
left to the AWS SDK, except in QueryStream which retries throttled pages.
*/
package operation
