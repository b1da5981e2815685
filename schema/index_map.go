/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"regexp"
	"sort"

	mderrors "github.com/suparena/mappeddb/errors"
)

var indexKeyPattern = regexp.MustCompile(`^(GSI\d+)(PK|SK)$`)

// FromIndexMap builds a TableSchema from an index map in the single-table
// convention, where the map keys are attribute names:
//
//	indexMap := map[string]string{
//	    "PK":     "USER#{ID}",
//	    "SK":     "USER#{ID}",
//	    "GSI1PK": "EMAIL#{Email}",
//	    "GSI1SK": "USER",
//	}
//
// GSI<n>PK / GSI<n>SK pairs become an index named GSI<n>.
func FromIndexMap[T any](entityType string, indexMap map[string]string) (*TableSchema[T], error) {
	pk, ok := indexMap["PK"]
	if !ok {
		return nil, mderrors.NewValidationError("PK", "index map has no PK template")
	}

	opts := []Option{WithPartitionKey("PK", pk)}
	if sk, ok := indexMap["SK"]; ok {
		opts = append(opts, WithSortKey("SK", sk))
	}

	type pair struct{ pk, sk string }
	indexes := make(map[string]*pair)
	for attr, template := range indexMap {
		m := indexKeyPattern.FindStringSubmatch(attr)
		if m == nil {
			if attr != "PK" && attr != "SK" {
				return nil, mderrors.NewValidationError(attr, "unsupported index map key")
			}
			continue
		}
		p, ok := indexes[m[1]]
		if !ok {
			p = &pair{}
			indexes[m[1]] = p
		}
		if m[2] == "PK" {
			p.pk = template
		} else {
			p.sk = template
		}
	}

	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := indexes[name]
		if p.pk == "" {
			return nil, mderrors.NewValidationError(name+"PK", fmt.Sprintf("index %s has a sort key but no partition key", name))
		}
		skAttr := ""
		if p.sk != "" {
			skAttr = name + "SK"
		}
		opts = append(opts, WithIndex(name, name+"PK", p.pk, skAttr, p.sk))
	}

	return New[T](entityType, opts...)
}
