/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

/*
Package schema describes how Go types map onto a single DynamoDB table.

A TableSchema names the key attributes of the table and of its global
secondary indexes together with the templates their values are expanded
from. Templates reference item fields by their attribute name:

	s := schema.MustNew[Order]("Order",
	    schema.WithPartitionKey("PK", "USER#{UserId}"),
	    schema.WithSortKey("SK", "ORDER#{CreatedAt}#{OrderId}"),
	    schema.WithIndex("GSI1", "GSI1PK", "STATUS#{Status}", "GSI1SK", "{CreatedAt}"),
	)

Index keys whose fields are empty are not written, so an item only appears in
the indexes it has values for.

Schemas can also be built from the index maps used by code generators
(FromIndexMap) or loaded from a YAML definition file (LoadDefinitions).
Register associates a schema with its type, RegisterDecoder makes an entity
type decodable by Decode when items of several types share a partition.
*/
package schema
