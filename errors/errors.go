/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when an item is not found
	ErrNotFound = errors.New("item not found")

	// ErrAlreadyExists is returned when attempting to create an item that already exists
	ErrAlreadyExists = errors.New("item already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when a conditional write fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrNoSchema is returned when no table schema is registered for a type
	ErrNoSchema = errors.New("no table schema found for type")

	// ErrUnexpectedResult is returned when an operation result does not have the declared type
	ErrUnexpectedResult = errors.New("unexpected operation result")
)

// NotFoundError represents an error when an item is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when an item already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation.
// Cause holds the error reported by DynamoDB, if any.
type ConditionFailedError struct {
	Operation string
	Condition string
	Cause     error
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

func (e *ConditionFailedError) Unwrap() error {
	return e.Cause
}

// NoSchemaError is returned by registry lookups for unregistered types
type NoSchemaError struct {
	Type string
}

func (e *NoSchemaError) Error() string {
	return fmt.Sprintf("no table schema registered for %s", e.Type)
}

func (e *NoSchemaError) Is(target error) bool {
	return target == ErrNoSchema
}

// UnexpectedResultError reports an operation result whose dynamic type
// differs from the type the operation declares.
type UnexpectedResultError struct {
	Operation string
	Want      string
	Got       string
}

func (e *UnexpectedResultError) Error() string {
	return fmt.Sprintf("%s returned %s, expected %s", e.Operation, e.Got, e.Want)
}

func (e *UnexpectedResultError) Is(target error) bool {
	return target == ErrUnexpectedResult
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(itemType, key string) error {
	return &NotFoundError{Type: itemType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(itemType, key string) error {
	return &AlreadyExistsError{Type: itemType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string, cause error) error {
	return &ConditionFailedError{Operation: operation, Condition: condition, Cause: cause}
}

// NewNoSchemaError creates a new NoSchemaError
func NewNoSchemaError(typeName string) error {
	return &NoSchemaError{Type: typeName}
}

// NewUnexpectedResultError creates a new UnexpectedResultError
func NewUnexpectedResultError(operation string, want, got any) error {
	return &UnexpectedResultError{
		Operation: operation,
		Want:      fmt.Sprintf("%T", want),
		Got:       fmt.Sprintf("%T", got),
	}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsNoSchema checks if an error reports a missing table schema
func IsNoSchema(err error) bool {
	return errors.Is(err, ErrNoSchema)
}
