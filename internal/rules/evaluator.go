package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/listbridge/internal/domain"
)

// Evaluate decides whether a condition holds for the given context.
// Unknown/invalid operator values never match, same as the original
// string-keyed dispatch.
func Evaluate(cond Condition, ctx *Context) bool {
	switch c := cond.(type) {
	case Always:
		return true

	case Products:
		return matchItems(c.Operator, ctx.Items, c.IDs, func(item int, ids map[int64]bool) bool {
			return ids[ctx.Items[item].ProductID]
		})

	case Variations:
		return matchItems(c.Operator, ctx.Items, c.IDs, func(item int, ids map[int64]bool) bool {
			return ids[ctx.Items[item].VariationID]
		})

	case Categories:
		return matchItems(c.Operator, ctx.Items, c.IDs, func(item int, ids map[int64]bool) bool {
			for _, cat := range ctx.Items[item].CategoryIDs {
				if ids[cat] {
					return true
				}
			}
			return false
		})

	case Amount:
		return compareFloats(c.Operator, ctx.Total, c.Threshold)

	case Roles:
		intersects := false
		configured := make(map[string]bool, len(c.Names))
		for _, name := range c.Names {
			configured[name] = true
		}
		for _, role := range ctx.CustomerRoles {
			if configured[role] {
				intersects = true
				break
			}
		}
		if c.Operator == OpIs {
			return intersects
		}
		if c.Operator == OpIsNot {
			return !intersects
		}
		return false

	case CustomField:
		// Custom fields cannot be checked against a cart: there is no
		// order yet, so the check is skipped and the set proceeds.
		if ctx.CartOnly {
			return true
		}
		value, ok := ctx.lookupCustomField(c.Key)
		if !ok {
			return false
		}
		return compareCustomField(c, value)

	default:
		return false
	}
}

func matchItems(op SetOperator, items []domain.OrderItem, ids []int64, match func(item int, ids map[int64]bool) bool) bool {
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	contains := false
	for i := range items {
		if match(i, idSet) {
			contains = true
			break
		}
	}
	switch op {
	case OpContains:
		return contains
	case OpDoesNotContain:
		return !contains
	}
	return false
}

func compareFloats(op CompareOperator, left, right float64) bool {
	switch op {
	case OpLt:
		return left < right
	case OpLe:
		return left <= right
	case OpEq:
		return left == right
	case OpGe:
		return left >= right
	case OpGt:
		return left > right
	}
	return false
}

// compareCustomField applies a CustomField operator to a stored value.
// Numeric operators keep the original's operand order: the configured value
// is the left operand, the stored value the right one.
func compareCustomField(c CustomField, stored string) bool {
	switch c.Operator {
	case string(OpIs):
		return looseEqual(c.Value, stored)
	case string(OpIsNot):
		return !looseEqual(c.Value, stored)
	case string(OpContains):
		return regexMatches(c.Value, stored)
	case string(OpDoesNotContain):
		return !regexMatches(c.Value, stored)
	case string(OpLt), string(OpLe), string(OpEq), string(OpGe), string(OpGt):
		left, lok := parseNumber(c.Value)
		right, rok := parseNumber(stored)
		if lok && rok {
			return compareFloats(CompareOperator(c.Operator), left, right)
		}
		return compareStrings(CompareOperator(c.Operator), c.Value, stored)
	}
	return false
}

// regexMatches treats the configured value as a regular expression pattern,
// matching the original's preg_match call. A pattern that fails to compile
// matches nothing.
func regexMatches(pattern, value string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// looseEqual compares two values numerically when both parse as numbers,
// byte-wise otherwise.
func looseEqual(a, b string) bool {
	if fa, ok := parseNumber(a); ok {
		if fb, ok := parseNumber(b); ok {
			return fa == fb
		}
	}
	return a == b
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func compareStrings(op CompareOperator, left, right string) bool {
	cmp := strings.Compare(left, right)
	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpEq:
		return cmp == 0
	case OpGe:
		return cmp >= 0
	case OpGt:
		return cmp > 0
	}
	return false
}
