/*
Package mappeddb maps Go types onto DynamoDB tables.

A database executes operations, typed command values describing a single
DynamoDB interaction, and hands out table handles bound to a table name and a
schema. Cross-cutting behavior such as logging or rate limiting is added as
extensions wrapping every operation.

Basic Usage:

	db, err := mappeddb.Builder().
	    DynamoDbClient(dynamodb.NewFromConfig(cfg)).
	    ExtendWith(extension.Logging(logger)).
	    Build()

	userSchema := schema.MustNew[User]("User",
	    schema.WithPartitionKey("PK", "USER#{ID}"),
	    schema.WithSortKey("SK", "USER#{ID}"),
	    schema.WithIndex("GSI1", "GSI1PK", "EMAIL#{Email}", "GSI1SK", "USER"),
	)

	users := mappeddb.Table(db, "app", userSchema)
	err = users.PutItem(ctx, User{ID: "42", Email: "a@b.c"})
	user, err := users.GetOne(ctx, "42")

	byEmail, err := users.QueryIndex("GSI1").WithPartitionKey("a@b.c").Execute(ctx)

Any operation can also be executed directly:

	page, err := mappeddb.Execute[models.Page[User]](ctx, db, operation.Query[User]{
	    Table:   "app",
	    Schema:  userSchema,
	    Request: operation.QueryRequest{Partition: "USER#42"},
	})

The database itself adds no error categories: what an operation or an
extension returns reaches the caller unchanged.
*/
package mappeddb
