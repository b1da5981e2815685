/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mappeddb

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TypedCatalog holds the table handles of one item type under string keys.
type TypedCatalog[T any] struct {
	mu     sync.RWMutex
	tables map[string]*MappedTable[T]
}

// NewTypedCatalog creates an empty TypedCatalog for type T.
func NewTypedCatalog[T any]() *TypedCatalog[T] {
	return &TypedCatalog[T]{
		tables: make(map[string]*MappedTable[T]),
	}
}

// Register adds a table handle under key.
func (c *TypedCatalog[T]) Register(key string, table *MappedTable[T]) error {
	if table == nil {
		return fmt.Errorf("table handle for key %q is nil", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[key]; exists {
		return fmt.Errorf("table with key %q already registered", key)
	}
	c.tables[key] = table
	return nil
}

// Get returns the table handle registered under key.
func (c *TypedCatalog[T]) Get(key string) (*MappedTable[T], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, exists := c.tables[key]
	if !exists {
		return nil, fmt.Errorf("table with key %q not found", key)
	}
	return table, nil
}

// Remove deletes the handle registered under key.
func (c *TypedCatalog[T]) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[key]; !exists {
		return fmt.Errorf("table with key %q not found", key)
	}
	delete(c.tables, key)
	return nil
}

// List returns the registered keys in sorted order.
func (c *TypedCatalog[T]) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.tables))
	for k := range c.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Catalog holds a TypedCatalog per item type, so an application can keep
// all its table handles in one place.
type Catalog struct {
	mu       sync.Mutex
	catalogs map[reflect.Type]any
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		catalogs: make(map[reflect.Type]any),
	}
}

// CatalogFor returns the TypedCatalog of T, creating it on first use.
func CatalogFor[T any](c *Catalog) *TypedCatalog[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if existing, ok := c.catalogs[typ]; ok {
		return existing.(*TypedCatalog[T])
	}

	typed := NewTypedCatalog[T]()
	c.catalogs[typ] = typed
	return typed
}

// RegisterTable registers a table handle for T under key.
func RegisterTable[T any](c *Catalog, key string, table *MappedTable[T]) error {
	return CatalogFor[T](c).Register(key, table)
}

// LookupTable returns the table handle for T registered under key.
func LookupTable[T any](c *Catalog, key string) (*MappedTable[T], error) {
	return CatalogFor[T](c).Get(key)
}

// RemoveTable removes the table handle for T registered under key.
func RemoveTable[T any](c *Catalog, key string) error {
	return CatalogFor[T](c).Remove(key)
}

// ListTables lists the keys registered for T.
func ListTables[T any](c *Catalog) []string {
	return CatalogFor[T](c).List()
}
