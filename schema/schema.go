/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	mderrors "github.com/suparena/mappeddb/errors"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// DefaultEntityTypeAttribute is the attribute that records the entity type of each item.
const DefaultEntityTypeAttribute = "EntityType"

// KeyAttribute names a key attribute and the template its value is expanded from,
// e.g. {Name: "PK", Template: "USER#{ID}"}.
type KeyAttribute struct {
	Name     string `yaml:"attribute"`
	Template string `yaml:"template"`
}

// Index describes a global secondary index the items of a schema project into.
type Index struct {
	Name         string        `yaml:"name"`
	PartitionKey KeyAttribute  `yaml:"partitionKey"`
	SortKey      *KeyAttribute `yaml:"sortKey,omitempty"`
}

// TableSchema maps items of type T to their DynamoDB attribute representation.
// A TableSchema is immutable once built and may be shared between table handles.
type TableSchema[T any] struct {
	entityType     string
	entityTypeAttr string
	partitionKey   KeyAttribute
	sortKey        *KeyAttribute
	indexes        []Index
}

// Option configures a TableSchema under construction.
type Option func(*options)

type options struct {
	entityTypeAttr string
	partitionKey   KeyAttribute
	sortKey        *KeyAttribute
	indexes        []Index
}

// WithPartitionKey sets the table partition key attribute and its template.
func WithPartitionKey(attribute, template string) Option {
	return func(o *options) {
		o.partitionKey = KeyAttribute{Name: attribute, Template: template}
	}
}

// WithSortKey sets the table sort key attribute and its template.
func WithSortKey(attribute, template string) Option {
	return func(o *options) {
		o.sortKey = &KeyAttribute{Name: attribute, Template: template}
	}
}

// WithIndex adds a global secondary index. skAttribute may be empty for
// indexes without a sort key.
func WithIndex(name, pkAttribute, pkTemplate, skAttribute, skTemplate string) Option {
	return func(o *options) {
		idx := Index{
			Name:         name,
			PartitionKey: KeyAttribute{Name: pkAttribute, Template: pkTemplate},
		}
		if skAttribute != "" {
			idx.SortKey = &KeyAttribute{Name: skAttribute, Template: skTemplate}
		}
		o.indexes = append(o.indexes, idx)
	}
}

// WithEntityTypeAttribute overrides the attribute the entity type is written to.
// An empty name disables the attribute.
func WithEntityTypeAttribute(name string) Option {
	return func(o *options) {
		o.entityTypeAttr = name
	}
}

// New builds a TableSchema for T. entityType is written to every item so that
// polymorphic queries can pick the right decoder (see RegisterType).
func New[T any](entityType string, opts ...Option) (*TableSchema[T], error) {
	o := options{entityTypeAttr: DefaultEntityTypeAttribute}
	for _, opt := range opts {
		opt(&o)
	}

	s := &TableSchema[T]{
		entityType:     entityType,
		entityTypeAttr: o.entityTypeAttr,
		partitionKey:   o.partitionKey,
		sortKey:        o.sortKey,
		indexes:        o.indexes,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is like New but panics on an invalid schema. Intended for package-level vars.
func MustNew[T any](entityType string, opts ...Option) *TableSchema[T] {
	s, err := New[T](entityType, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *TableSchema[T]) validate() error {
	if s.partitionKey.Name == "" || s.partitionKey.Template == "" {
		return mderrors.NewValidationError("partitionKey", "attribute and template are required")
	}
	if s.sortKey != nil && (s.sortKey.Name == "" || s.sortKey.Template == "") {
		return mderrors.NewValidationError("sortKey", "attribute and template are required")
	}

	seen := make(map[string]bool, len(s.indexes))
	for _, idx := range s.indexes {
		if idx.Name == "" {
			return mderrors.NewValidationError("indexes", "index name is required")
		}
		if seen[idx.Name] {
			return mderrors.NewValidationError("indexes", fmt.Sprintf("duplicate index %q", idx.Name))
		}
		seen[idx.Name] = true
		if idx.PartitionKey.Name == "" || idx.PartitionKey.Template == "" {
			return mderrors.NewValidationError("indexes", fmt.Sprintf("index %q needs a partition key", idx.Name))
		}
		if idx.SortKey != nil && (idx.SortKey.Name == "" || idx.SortKey.Template == "") {
			return mderrors.NewValidationError("indexes", fmt.Sprintf("index %q has an incomplete sort key", idx.Name))
		}
	}
	return nil
}

// EntityType returns the entity type name written to each item.
func (s *TableSchema[T]) EntityType() string { return s.entityType }

// EntityTypeAttribute returns the attribute holding the entity type, or "" when disabled.
func (s *TableSchema[T]) EntityTypeAttribute() string { return s.entityTypeAttr }

// PartitionKey returns the table partition key definition.
func (s *TableSchema[T]) PartitionKey() KeyAttribute { return s.partitionKey }

// SortKey returns the table sort key definition, if any.
func (s *TableSchema[T]) SortKey() (KeyAttribute, bool) {
	if s.sortKey == nil {
		return KeyAttribute{}, false
	}
	return *s.sortKey, true
}

// Indexes returns a copy of the secondary index definitions.
func (s *TableSchema[T]) Indexes() []Index {
	out := make([]Index, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// Index looks up a secondary index by name.
func (s *TableSchema[T]) Index(name string) (Index, bool) {
	for _, idx := range s.indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// KeyNames returns the partition and sort key attribute names of the table
// (index == "") or of the named index.
func (s *TableSchema[T]) KeyNames(index string) (partition, sort string, err error) {
	if index == "" {
		if s.sortKey != nil {
			sort = s.sortKey.Name
		}
		return s.partitionKey.Name, sort, nil
	}

	idx, ok := s.Index(index)
	if !ok {
		return "", "", mderrors.NewValidationError("index", fmt.Sprintf("unknown index %q", index))
	}
	if idx.SortKey != nil {
		sort = idx.SortKey.Name
	}
	return idx.PartitionKey.Name, sort, nil
}

// ItemToMap marshals item and adds its expanded key attributes and entity type.
// Index keys whose macros cannot be resolved are left out, which keeps the
// item out of that (sparse) index.
func (s *TableSchema[T]) ItemToMap(item T) (Item, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	key, err := s.primaryKey(av)
	if err != nil {
		return nil, err
	}

	for _, idx := range s.indexes {
		pk, ok := expandTemplate(idx.PartitionKey.Template, av)
		if !ok {
			continue
		}
		if idx.SortKey == nil {
			av[idx.PartitionKey.Name] = &types.AttributeValueMemberS{Value: pk}
			continue
		}
		sk, ok := expandTemplate(idx.SortKey.Template, av)
		if !ok {
			continue
		}
		av[idx.PartitionKey.Name] = &types.AttributeValueMemberS{Value: pk}
		av[idx.SortKey.Name] = &types.AttributeValueMemberS{Value: sk}
	}

	for k, v := range key {
		av[k] = v
	}

	if s.entityTypeAttr != "" && s.entityType != "" {
		av[s.entityTypeAttr] = &types.AttributeValueMemberS{Value: s.entityType}
	}

	return av, nil
}

// MapToItem decodes a raw DynamoDB item into T. Attributes without a matching
// field, such as the key attributes, are ignored.
func (s *TableSchema[T]) MapToItem(item Item) (T, error) {
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s item: %w", s.typeName(), err)
	}
	return out, nil
}

// KeyFor returns the primary key attributes of item.
func (s *TableSchema[T]) KeyFor(item T) (Item, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key item: %w", err)
	}
	return s.primaryKey(av)
}

// KeyFromString builds a primary key by substituting key for every macro of the
// key templates, so "USER#{ID}" with key "42" becomes "USER#42".
func (s *TableSchema[T]) KeyFromString(key string) (Item, error) {
	if key == "" {
		return nil, mderrors.NewValidationError("key", "must not be empty")
	}

	out := Item{
		s.partitionKey.Name: &types.AttributeValueMemberS{Value: expandStringKey(s.partitionKey.Template, key)},
	}
	if s.sortKey != nil {
		out[s.sortKey.Name] = &types.AttributeValueMemberS{Value: expandStringKey(s.sortKey.Template, key)}
	}
	return out, nil
}

// Key builds a primary key from literal attribute values. sort is ignored when
// the table has no sort key.
func (s *TableSchema[T]) Key(partition, sort string) Item {
	out := Item{
		s.partitionKey.Name: &types.AttributeValueMemberS{Value: partition},
	}
	if s.sortKey != nil {
		out[s.sortKey.Name] = &types.AttributeValueMemberS{Value: sort}
	}
	return out
}

// Expand resolves the template of the named key attribute with values taken
// from fields, which may be a struct or a map. Expand("GSI1PK", map[string]any{"Email": "a@b.c"})
// returns "EMAIL#a@b.c" for the template "EMAIL#{Email}".
func (s *TableSchema[T]) Expand(attribute string, fields any) (string, error) {
	template, ok := s.template(attribute)
	if !ok {
		return "", mderrors.NewValidationError("attribute", fmt.Sprintf("%q is not a key attribute of %s", attribute, s.typeName()))
	}

	av, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}

	expanded, complete := expandTemplate(template, av)
	if !complete {
		return "", mderrors.NewValidationError(attribute, fmt.Sprintf("template %q needs fields %v", template, macros(template)))
	}
	return expanded, nil
}

// Prefix returns the static text before the first macro of the named key
// attribute's template, e.g. "USER#" for "USER#{ID}".
func (s *TableSchema[T]) Prefix(attribute string) (string, bool) {
	template, ok := s.template(attribute)
	if !ok {
		return "", false
	}
	return staticPrefix(template), true
}

func (s *TableSchema[T]) template(attribute string) (string, bool) {
	if s.partitionKey.Name == attribute {
		return s.partitionKey.Template, true
	}
	if s.sortKey != nil && s.sortKey.Name == attribute {
		return s.sortKey.Template, true
	}
	for _, idx := range s.indexes {
		if idx.PartitionKey.Name == attribute {
			return idx.PartitionKey.Template, true
		}
		if idx.SortKey != nil && idx.SortKey.Name == attribute {
			return idx.SortKey.Template, true
		}
	}
	return "", false
}

func (s *TableSchema[T]) primaryKey(av Item) (Item, error) {
	pk, ok := expandTemplate(s.partitionKey.Template, av)
	if !ok {
		return nil, mderrors.NewValidationError(s.partitionKey.Name,
			fmt.Sprintf("template %q needs fields %v", s.partitionKey.Template, macros(s.partitionKey.Template)))
	}
	key := Item{s.partitionKey.Name: &types.AttributeValueMemberS{Value: pk}}

	if s.sortKey != nil {
		sk, ok := expandTemplate(s.sortKey.Template, av)
		if !ok {
			return nil, mderrors.NewValidationError(s.sortKey.Name,
				fmt.Sprintf("template %q needs fields %v", s.sortKey.Template, macros(s.sortKey.Template)))
		}
		key[s.sortKey.Name] = &types.AttributeValueMemberS{Value: sk}
	}
	return key, nil
}

func (s *TableSchema[T]) typeName() string {
	if s.entityType != "" {
		return s.entityType
	}
	var zero T
	return fmt.Sprintf("%T", zero)
}

// IndexKeyUpdates recomputes the index keys affected by setting fields on a
// stored item. Indexes whose templates use none of the fields are left
// alone. An affected index must find every macro of its templates in fields,
// otherwise the stored key could not be rebuilt and a ValidationError is
// returned. Index keys whose fields are set to empty values are listed in
// remove, which drops the item from that sparse index.
func (s *TableSchema[T]) IndexKeyUpdates(fields map[string]any) (set map[string]string, remove []string, err error) {
	if len(fields) == 0 {
		return nil, nil, nil
	}
	for _, name := range s.primaryKeyFields() {
		if _, ok := fields[name]; ok {
			return nil, nil, mderrors.NewValidationError(name, "field is part of the primary key and cannot be updated")
		}
	}

	av, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal update fields: %w", err)
	}

	set = map[string]string{}
	for _, idx := range s.indexes {
		keys := []KeyAttribute{idx.PartitionKey}
		if idx.SortKey != nil {
			keys = append(keys, *idx.SortKey)
		}

		var used, missing []string
		for _, k := range keys {
			for _, name := range macros(k.Template) {
				if _, ok := fields[name]; ok {
					used = append(used, name)
				} else {
					missing = append(missing, name)
				}
			}
		}
		if len(used) == 0 {
			continue
		}
		if len(missing) > 0 {
			return nil, nil, mderrors.NewValidationError(missing[0],
				fmt.Sprintf("index %s is keyed on %v, so they must be updated together", idx.Name, append(used, missing...)))
		}

		expanded := make(map[string]string, len(keys))
		complete := true
		for _, k := range keys {
			v, ok := expandTemplate(k.Template, av)
			if !ok {
				complete = false
				break
			}
			expanded[k.Name] = v
		}
		if !complete {
			for _, k := range keys {
				remove = append(remove, k.Name)
			}
			continue
		}
		for name, v := range expanded {
			set[name] = v
		}
	}
	return set, remove, nil
}

func (s *TableSchema[T]) primaryKeyFields() []string {
	names := macros(s.partitionKey.Template)
	if s.sortKey != nil {
		names = append(names, macros(s.sortKey.Template)...)
	}
	return names
}
