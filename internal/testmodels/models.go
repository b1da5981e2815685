/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package testmodels holds the entity types shared by the package tests.
package testmodels

import (
	"github.com/suparena/mappeddb/schema"
)

// TableName is the single table all test entities live in.
const TableName = "mappeddb-test"

type User struct {
	ID        string          `dynamodbav:"Id"`
	Email     string          `dynamodbav:"Email"`
	Name      string          `dynamodbav:"Name"`
	Status    string          `dynamodbav:"Status,omitempty"`
	CreatedAt schema.DateTime `dynamodbav:"CreatedAt"`
}

type Order struct {
	UserID    string          `dynamodbav:"UserId"`
	OrderID   string          `dynamodbav:"OrderId"`
	Total     float64         `dynamodbav:"Total"`
	Status    string          `dynamodbav:"Status"`
	CreatedAt schema.DateTime `dynamodbav:"CreatedAt"`
}

type RatingSystem struct {

	// Timestamp when the rating system was created.
	CreatedAt schema.DateTime `dynamodbav:"CreatedAt"`

	// A description of the rating system.
	Description *string `dynamodbav:"Description"`

	// Unique identifier for the rating system.
	ID *string `dynamodbav:"Id"`

	// Name of the rating system.
	Name *string `dynamodbav:"Name"`

	// site Url
	SiteURL string `dynamodbav:"SiteUrl,omitempty"`

	// Timestamp when the rating system was last updated.
	UpdatedAt schema.DateTime `dynamodbav:"UpdatedAt"`
}

// UserSchema keeps users in their own partition and indexes them by email.
func UserSchema() *schema.TableSchema[User] {
	return schema.MustNew[User]("User",
		schema.WithPartitionKey("PK", "USER#{Id}"),
		schema.WithSortKey("SK", "USER#{Id}"),
		schema.WithIndex("GSI1", "GSI1PK", "EMAIL#{Email}", "GSI1SK", "USER"),
	)
}

// OrderSchema stores orders in their user's partition, sorted by time, and
// indexes them by status. Orders without a status stay out of GSI1.
func OrderSchema() *schema.TableSchema[Order] {
	return schema.MustNew[Order]("Order",
		schema.WithPartitionKey("PK", "USER#{UserId}"),
		schema.WithSortKey("SK", "ORDER#{CreatedAt}#{OrderId}"),
		schema.WithIndex("GSI1", "GSI1PK", "STATUS#{Status}", "GSI1SK", "{CreatedAt}"),
	)
}

// RatingSystemSchema is built from an index map.
func RatingSystemSchema() *schema.TableSchema[RatingSystem] {
	s, err := schema.FromIndexMap[RatingSystem]("RatingSystem", map[string]string{
		"PK":     "RS#{Id}",
		"SK":     "RS#{Id}",
		"GSI1PK": "RSNAME#{Name}",
		"GSI1SK": "RS",
	})
	if err != nil {
		panic(err)
	}
	return s
}

func StringPtr(s string) *string { return &s }
