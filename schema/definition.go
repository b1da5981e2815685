/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"io"
	"os"

	mderrors "github.com/suparena/mappeddb/errors"
	"gopkg.in/yaml.v3"
)

// File is a schema definition document describing the entities stored in one table.
//
//	table: app-table
//	entities:
//	  - type: User
//	    partitionKey: {attribute: PK, template: "USER#{ID}"}
//	    sortKey: {attribute: SK, template: "USER#{ID}"}
//	    indexes:
//	      - name: GSI1
//	        partitionKey: {attribute: GSI1PK, template: "EMAIL#{Email}"}
type File struct {
	Table    string       `yaml:"table"`
	Entities []Definition `yaml:"entities"`
}

// Definition describes how one entity type maps onto the table.
type Definition struct {
	Type                string        `yaml:"type"`
	EntityTypeAttribute *string       `yaml:"entityTypeAttribute,omitempty"`
	PartitionKey        KeyAttribute  `yaml:"partitionKey"`
	SortKey             *KeyAttribute `yaml:"sortKey,omitempty"`
	Indexes             []Index       `yaml:"indexes,omitempty"`
}

// LoadDefinitions decodes and validates a schema definition document.
func LoadDefinitions(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode schema definitions: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadDefinitionsFile reads a schema definition document from path.
func LoadDefinitionsFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer fh.Close()

	return LoadDefinitions(fh)
}

// Validate checks the document for a table name, unique entity types and
// well-formed key definitions.
func (f *File) Validate() error {
	if f.Table == "" {
		return mderrors.NewValidationError("table", "must not be empty")
	}
	if len(f.Entities) == 0 {
		return mderrors.NewValidationError("entities", "at least one entity is required")
	}

	seen := make(map[string]bool, len(f.Entities))
	for i, d := range f.Entities {
		if d.Type == "" {
			return mderrors.NewValidationError(fmt.Sprintf("entities[%d].type", i), "must not be empty")
		}
		if seen[d.Type] {
			return mderrors.NewValidationError(fmt.Sprintf("entities[%d].type", i), fmt.Sprintf("duplicate entity type %q", d.Type))
		}
		seen[d.Type] = true

		if _, err := SchemaFor[map[string]any](d); err != nil {
			return fmt.Errorf("entity %q: %w", d.Type, err)
		}
	}
	return nil
}

// Entity returns the definition of the named entity type.
func (f *File) Entity(entityType string) (Definition, bool) {
	for _, d := range f.Entities {
		if d.Type == entityType {
			return d, true
		}
	}
	return Definition{}, false
}

// Options converts the definition into schema options.
func (d Definition) Options() []Option {
	opts := []Option{WithPartitionKey(d.PartitionKey.Name, d.PartitionKey.Template)}
	if d.SortKey != nil {
		opts = append(opts, WithSortKey(d.SortKey.Name, d.SortKey.Template))
	}
	if d.EntityTypeAttribute != nil {
		opts = append(opts, WithEntityTypeAttribute(*d.EntityTypeAttribute))
	}
	for _, idx := range d.Indexes {
		skName, skTemplate := "", ""
		if idx.SortKey != nil {
			skName, skTemplate = idx.SortKey.Name, idx.SortKey.Template
		}
		opts = append(opts, WithIndex(idx.Name, idx.PartitionKey.Name, idx.PartitionKey.Template, skName, skTemplate))
	}
	return opts
}

// SchemaFor builds a TableSchema for T from a definition.
func SchemaFor[T any](d Definition) (*TableSchema[T], error) {
	return New[T](d.Type, d.Options()...)
}
