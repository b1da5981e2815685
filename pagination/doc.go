/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package pagination hands out opaque page cursors in place of DynamoDB
// LastEvaluatedKey maps. Cursors are stored in the paged table itself as
// records keyed "PAGE#<uuid>" with an ExpiresAt attribute meant to be the
// table's time to live attribute.
package pagination
