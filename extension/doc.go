/*
Package extension provides middleware that wraps operation execution.

An Extension receives the next Handler and returns a new one. Extensions are
given to the database builder in order; the first one is the outermost:

	db, err := mappeddb.Builder().
	    DynamoDbClient(client).
	    ExtendWith(extension.Logging(logger)).
	    ExtendWith(extension.RateLimit(rate.NewLimiter(50, 10))).
	    Build()

Extensions see commands with their result type erased. operation.Unwrap
returns the typed operation for extensions that need to inspect it.
*/
package extension
