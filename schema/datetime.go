/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"
)

// DateTime is a strfmt.DateTime stored as a string attribute in strfmt's
// marshal format. Values are kept in UTC so that the stored strings sort in
// time order, which makes DateTime fields usable in sort key templates.
type DateTime strfmt.DateTime

// NewDateTime returns t as a DateTime in UTC, truncated to the millisecond
// precision it is stored with.
func NewDateTime(t time.Time) DateTime {
	return DateTime(t.UTC().Truncate(time.Millisecond))
}

// FormatTime renders t the way DateTime attributes are stored.
func FormatTime(t time.Time) string {
	return strfmt.DateTime(t.UTC()).String()
}

// Time returns the underlying time.
func (d DateTime) Time() time.Time {
	return time.Time(d)
}

func (d DateTime) String() string {
	return FormatTime(time.Time(d))
}

// IsZero reports whether d holds the zero time.
func (d DateTime) IsZero() bool {
	return time.Time(d).IsZero()
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (d DateTime) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if d.IsZero() {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return &types.AttributeValueMemberS{Value: d.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (d *DateTime) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberNULL:
		*d = DateTime{}
		return nil
	case *types.AttributeValueMemberS:
		parsed, err := strfmt.ParseDateTime(v.Value)
		if err != nil {
			return fmt.Errorf("invalid date-time %q: %w", v.Value, err)
		}
		*d = NewDateTime(time.Time(parsed))
		return nil
	default:
		return fmt.Errorf("cannot unmarshal %T into DateTime", av)
	}
}
