/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"(", "#0", "=", ":0", ")", "AND", "(", "#1", "<=", ":1", ")"},
		tokenize("(#0 = :0) AND (#1 <= :1)"))
	assert.Equal(t,
		[]string{"begins_with", "(", "#0", ",", ":0", ")"},
		tokenize("begins_with (#0, :0)"))
	assert.Equal(t, []string{"#0", "<>", ":0"}, tokenize("#0<>:0"))
	assert.Equal(t, []string{"SET", "#0", "=", "#0", "+", ":0"}, tokenize("SET #0 = #0 + :0"))
}

func TestParseCondition(t *testing.T) {
	e := env{
		names: map[string]string{"#pk": "PK", "#sk": "SK", "#n": "Count", "#tags": "Tags", "#missing": "Missing"},
		values: map[string]types.AttributeValue{
			":pk":  s("USER#1"),
			":pre": s("ORDER#"),
			":lo":  n("2"),
			":hi":  n("10"),
			":a":   s("a"),
			":b":   s("b"),
			":len": n("2"),
		},
	}
	item := map[string]types.AttributeValue{
		"PK":    s("USER#1"),
		"SK":    s("ORDER#2025"),
		"Count": n("5"),
		"Tags":  &types.AttributeValueMemberSS{Value: []string{"a", "c"}},
	}

	tests := []struct {
		expr     string
		expected bool
	}{
		{"#pk = :pk", true},
		{"#pk <> :pk", false},
		{"#pk = :pk AND begins_with(#sk, :pre)", true},
		{"#n BETWEEN :lo AND :hi", true},
		{"#n > :hi OR #n < :lo", false},
		{"NOT (#n > :hi)", true},
		{"#n >= :lo AND #n <= :hi", true},
		{"attribute_exists(#pk)", true},
		{"attribute_not_exists(#missing)", true},
		{"attribute_exists(#missing)", false},
		{"contains(#tags, :a)", true},
		{"contains(#tags, :b)", false},
		{"size(#tags) = :len", true},
		{"#n IN (:lo, :hi)", false},
		{"#missing <> :a", true},
		{"#missing = :a", false},
		{"(#pk = :pk) AND ((#n = :lo) OR (#n > :lo))", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			cond, err := parseCondition(tt.expr, e)
			require.NoError(t, err)
			got, err := cond(item)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseConditionErrors(t *testing.T) {
	e := env{names: map[string]string{"#a": "A"}, values: map[string]types.AttributeValue{":a": s("x")}}

	for _, expr := range []string{
		"#undefined = :a",
		"#a = :undefined",
		"#a ~ :a",
		"#a = :a extra",
		"(#a = :a",
		"attribute_exists(#a, #a)",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := parseCondition(expr, e)
			assert.Error(t, err)
		})
	}
}

func TestParseUpdate(t *testing.T) {
	e := env{
		names:  map[string]string{"#n": "Count", "#name": "Name", "#old": "Old", "#seen": "Seen"},
		values: map[string]types.AttributeValue{":one": n("1"), ":name": s("Ada"), ":zero": n("0")},
	}
	item := map[string]types.AttributeValue{"Count": n("41"), "Old": s("x")}

	assignments, err := parseUpdate("SET #n = #n + :one, #name = :name, #seen = if_not_exists(#seen, :zero) REMOVE #old", e)
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	v, ok, err := assignments[0].value(item)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n("42"), v)

	v, _, err = assignments[1].value(item)
	require.NoError(t, err)
	assert.Equal(t, s("Ada"), v)

	v, _, err = assignments[2].value(item)
	require.NoError(t, err)
	assert.Equal(t, n("0"), v)

	assert.Equal(t, "Old", assignments[3].name)
	assert.True(t, assignments[3].remove)

	t.Run("subtraction", func(t *testing.T) {
		a, err := parseUpdate("SET #n = #n - :one", e)
		require.NoError(t, err)
		v, _, err := a[0].value(item)
		require.NoError(t, err)
		assert.Equal(t, n("40"), v)
	})

	t.Run("arithmetic on strings", func(t *testing.T) {
		a, err := parseUpdate("SET #name = #name + :one", e)
		require.NoError(t, err)
		_, _, err = a[0].value(map[string]types.AttributeValue{"Name": s("x")})
		assert.Error(t, err)
	})

	t.Run("unsupported clause", func(t *testing.T) {
		_, err := parseUpdate("ADD #n :one", e)
		assert.Error(t, err)
	})
}

func TestCompareValues(t *testing.T) {
	c, ok := compareValues(n("10"), n("9"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = compareValues(s("10"), s("9"))
	assert.True(t, ok)
	assert.Equal(t, -1, c, "strings compare bytewise")

	_, ok = compareValues(s("1"), n("1"))
	assert.False(t, ok)

	assert.True(t, equalValues(n("1.0"), n("1")))
	assert.True(t, beginsWith(s("ORDER#1"), s("ORDER#")))
	assert.False(t, beginsWith(n("12"), n("1")))
	assert.True(t, containsValue(s("hello"), s("ell")))
	assert.Equal(t, 5, sizeOf(s("hello")))
}
