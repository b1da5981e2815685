/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// UnmarshalFunc decodes a raw DynamoDB item into a typed value.
type UnmarshalFunc func(item Item) (any, error)

var (
	typeRegistry = make(map[string]UnmarshalFunc)
	typeMu       sync.RWMutex
)

// RegisterType registers an unmarshal function for an entity type name.
// It panics when the name is already taken, to prevent accidental overrides.
func RegisterType(entityType string, fn UnmarshalFunc) {
	typeMu.Lock()
	defer typeMu.Unlock()

	if _, exists := typeRegistry[entityType]; exists {
		panic(fmt.Sprintf("type registry: entity type %q already registered", entityType))
	}
	typeRegistry[entityType] = fn
}

// RegisterDecoder registers s as the decoder for its entity type. Decoded
// values are *T.
func RegisterDecoder[T any](s *TableSchema[T]) {
	RegisterType(s.EntityType(), func(item Item) (any, error) {
		v, err := s.MapToItem(item)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
}

// GetUnmarshalFunc returns the unmarshal function registered for entityType.
func GetUnmarshalFunc(entityType string) (UnmarshalFunc, error) {
	typeMu.RLock()
	defer typeMu.RUnlock()

	fn, ok := typeRegistry[entityType]
	if !ok {
		return nil, fmt.Errorf("type registry: no type registered for %q", entityType)
	}
	return fn, nil
}

// Decode picks the unmarshal function named by the item's entity type
// attribute. Items of unknown types decode into map[string]any.
func Decode(item Item, entityTypeAttr string) (any, error) {
	var entityType string
	if attr, ok := item[entityTypeAttr]; ok {
		if err := attributevalue.Unmarshal(attr, &entityType); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", entityTypeAttr, err)
		}
	}

	if entityType != "" {
		if fn, err := GetUnmarshalFunc(entityType); err == nil {
			obj, err := fn(item)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal item for %s %q: %w", entityTypeAttr, entityType, err)
			}
			return obj, nil
		}
	}

	var generic map[string]any
	if err := attributevalue.UnmarshalMap(item, &generic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generic item: %w", err)
	}
	return generic, nil
}
