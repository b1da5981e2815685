/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"reflect"
	"sync"

	mderrors "github.com/suparena/mappeddb/errors"
)

// The schema registry associates Go types with their TableSchema so that
// code holding only a type parameter can find its mapping.
var (
	schemaRegistry = make(map[reflect.Type]any)
	schemaMu       sync.RWMutex
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register associates T with s, replacing any earlier registration.
func Register[T any](s *TableSchema[T]) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	schemaRegistry[typeOf[T]()] = s
}

// Lookup returns the schema registered for T.
func Lookup[T any]() (*TableSchema[T], error) {
	t := typeOf[T]()

	schemaMu.RLock()
	defer schemaMu.RUnlock()
	s, ok := schemaRegistry[t]
	if !ok {
		return nil, mderrors.NewNoSchemaError(t.String())
	}
	return s.(*TableSchema[T]), nil
}

// MustLookup is like Lookup but panics when T has no schema.
func MustLookup[T any]() *TableSchema[T] {
	s, err := Lookup[T]()
	if err != nil {
		panic(err)
	}
	return s
}
