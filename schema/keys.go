/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

// expandTemplate replaces each {Field} macro in template with the string form of
// the matching attribute in av. complete is false when a macro has no usable value.
func expandTemplate(template string, av Item) (expanded string, complete bool) {
	complete = true
	expanded = macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
		key := strings.Trim(macro, "{}")

		val, ok := av[key]
		if !ok {
			complete = false
			return ""
		}

		s, ok := attributeString(val)
		if !ok {
			complete = false
		}
		return s
	})
	return expanded, complete
}

// attributeString converts scalar attribute values into their key form.
func attributeString(val types.AttributeValue) (string, bool) {
	switch tv := val.(type) {
	case *types.AttributeValueMemberS:
		return tv.Value, tv.Value != ""
	case *types.AttributeValueMemberN:
		return tv.Value, true
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprintf("%v", tv.Value), true
	default:
		// NULL, binary, sets, lists and maps cannot take part in a key
		return "", false
	}
}

// expandStringKey replaces every macro in template with key.
func expandStringKey(template, key string) string {
	return macroPattern.ReplaceAllString(template, key)
}

// macros lists the field names referenced by template.
func macros(template string) []string {
	matches := macroPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// staticPrefix returns the part of template before its first macro.
func staticPrefix(template string) string {
	loc := macroPattern.FindStringIndex(template)
	if loc == nil {
		return template
	}
	return template[:loc[0]]
}
