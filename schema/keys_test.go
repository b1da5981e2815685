/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestExpandTemplate(t *testing.T) {
	av := Item{
		"ID":     &types.AttributeValueMemberS{Value: "42"},
		"Age":    &types.AttributeValueMemberN{Value: "7"},
		"Active": &types.AttributeValueMemberBOOL{Value: true},
		"Empty":  &types.AttributeValueMemberS{Value: ""},
		"Gone":   &types.AttributeValueMemberNULL{Value: true},
	}

	tests := []struct {
		name     string
		template string
		expected string
		complete bool
	}{
		{"static", "USER", "USER", true},
		{"string macro", "USER#{ID}", "USER#42", true},
		{"number and bool", "{Age}#{Active}", "7#true", true},
		{"several macros", "A#{ID}#B#{Age}", "A#42#B#7", true},
		{"missing field", "USER#{Missing}", "USER#", false},
		{"empty string", "USER#{Empty}", "USER#", false},
		{"null value", "USER#{Gone}", "USER#", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, complete := expandTemplate(tt.template, av)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.complete, complete)
		})
	}
}

func TestMacrosAndPrefix(t *testing.T) {
	assert.Equal(t, []string{"CreatedAt", "OrderId"}, macros("ORDER#{CreatedAt}#{OrderId}"))
	assert.Empty(t, macros("USER"))

	assert.Equal(t, "ORDER#", staticPrefix("ORDER#{CreatedAt}#{OrderId}"))
	assert.Equal(t, "", staticPrefix("{CreatedAt}"))
	assert.Equal(t, "USER", staticPrefix("USER"))
}

func TestExpandStringKey(t *testing.T) {
	assert.Equal(t, "USER#42", expandStringKey("USER#{ID}", "42"))
	assert.Equal(t, "A#x#B#x", expandStringKey("A#{One}#B#{Two}", "x"))
	assert.Equal(t, "USER", expandStringKey("USER", "42"))
}
