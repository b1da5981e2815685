/*
Package errors provides semantic error types for mappeddb.

The package defines common error scenarios with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound         = errors.New("item not found")
	    ErrAlreadyExists    = errors.New("item already exists")
	    ErrInvalidInput     = errors.New("invalid input")
	    ErrConditionFailed  = errors.New("condition check failed")
	    ErrNoSchema         = errors.New("no table schema found for type")
	    ErrUnexpectedResult = errors.New("unexpected operation result")
	)

Usage:

	user, err := users.GetOne(ctx, "123")
	if err != nil {
	    if errors.IsNotFound(err) {
	        return nil, fmt.Errorf("user %s does not exist", "123")
	    }
	    return nil, err
	}

The database facade never wraps these errors: whatever an operation returns
reaches the caller unchanged. ConditionFailedError unwraps to the
ConditionalCheckFailedException reported by DynamoDB.
*/
package errors
