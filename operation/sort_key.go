/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package operation

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/suparena/mappeddb/schema"
)

type sortOp int

const (
	sortNone sortOp = iota
	sortEquals
	sortBeginsWith
	sortGreaterThan
	sortGreaterOrEqual
	sortLessThan
	sortLessOrEqual
	sortBetween
)

// SortCondition restricts the sort key of a query. The zero value matches
// every sort key.
type SortCondition struct {
	op    sortOp
	value string
	upper string
}

// SortEquals matches the sort key v exactly.
func SortEquals(v string) SortCondition {
	return SortCondition{op: sortEquals, value: v}
}

// SortBeginsWith matches sort keys starting with prefix.
func SortBeginsWith(prefix string) SortCondition {
	return SortCondition{op: sortBeginsWith, value: prefix}
}

// SortGreaterThan matches sort keys after v.
func SortGreaterThan(v string) SortCondition {
	return SortCondition{op: sortGreaterThan, value: v}
}

// SortGreaterOrEqual matches v and the sort keys after it.
func SortGreaterOrEqual(v string) SortCondition {
	return SortCondition{op: sortGreaterOrEqual, value: v}
}

// SortLessThan matches sort keys before v.
func SortLessThan(v string) SortCondition {
	return SortCondition{op: sortLessThan, value: v}
}

// SortLessOrEqual matches v and the sort keys before it.
func SortLessOrEqual(v string) SortCondition {
	return SortCondition{op: sortLessOrEqual, value: v}
}

// SortBetween matches sort keys in the inclusive range [lower, upper].
func SortBetween(lower, upper string) SortCondition {
	return SortCondition{op: sortBetween, value: lower, upper: upper}
}

// IsSet reports whether the condition restricts anything.
func (c SortCondition) IsSet() bool { return c.op != sortNone }

func (c SortCondition) keyCondition(name string) expression.KeyConditionBuilder {
	key := expression.Key(name)
	switch c.op {
	case sortEquals:
		return key.Equal(expression.Value(c.value))
	case sortBeginsWith:
		return key.BeginsWith(c.value)
	case sortGreaterThan:
		return key.GreaterThan(expression.Value(c.value))
	case sortGreaterOrEqual:
		return key.GreaterThanEqual(expression.Value(c.value))
	case sortLessThan:
		return key.LessThan(expression.Value(c.value))
	case sortLessOrEqual:
		return key.LessThanEqual(expression.Value(c.value))
	default:
		return key.Between(expression.Value(c.value), expression.Value(c.upper))
	}
}

// timeCeiling sorts after every timestamp sharing a prefix.
const timeCeiling = "~"

// SortAfter matches sort keys of the form prefix+timestamp at or after t.
func SortAfter(prefix string, t time.Time) SortCondition {
	if prefix == "" {
		return SortGreaterOrEqual(schema.FormatTime(t))
	}
	return SortBetween(prefix+schema.FormatTime(t), prefix+timeCeiling)
}

// SortBefore matches sort keys of the form prefix+timestamp at or before t.
func SortBefore(prefix string, t time.Time) SortCondition {
	if prefix == "" {
		return SortLessOrEqual(schema.FormatTime(t) + timeCeiling)
	}
	return SortBetween(prefix, prefix+schema.FormatTime(t)+timeCeiling)
}

// SortBetweenTimes matches timestamps in [start, end]. Sort keys continuing
// after the timestamp, such as "ORDER#<time>#<id>", are matched too.
func SortBetweenTimes(prefix string, start, end time.Time) SortCondition {
	return SortBetween(prefix+schema.FormatTime(start), prefix+schema.FormatTime(end)+timeCeiling)
}

// SortSince matches timestamps within the last d.
func SortSince(prefix string, d time.Duration) SortCondition {
	return SortAfter(prefix, time.Now().Add(-d))
}

// SortOnDay matches timestamps on the UTC calendar day of day.
func SortOnDay(prefix string, day time.Time) SortCondition {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)
	return SortBetweenTimes(prefix, start, end)
}
