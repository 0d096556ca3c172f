package rules

import "fmt"

// SetOperator selects how a set-membership condition matches order items.
type SetOperator string

const (
	OpContains       SetOperator = "contains"
	OpDoesNotContain SetOperator = "does_not_contain"
)

// CompareOperator is a numeric comparison operator.
type CompareOperator string

const (
	OpLt CompareOperator = "lt"
	OpLe CompareOperator = "le"
	OpEq CompareOperator = "eq"
	OpGe CompareOperator = "ge"
	OpGt CompareOperator = "gt"
)

// MatchOperator is an equality/inequality operator for role checks.
type MatchOperator string

const (
	OpIs    MatchOperator = "is"
	OpIsNot MatchOperator = "is_not"
)

// Condition is a closed set of subscription rule kinds. The original
// implementation dispatched on string keys read from configuration; here each
// kind is its own type so the evaluator switch is exhaustive.
type Condition interface {
	conditionKind() string
}

// Always matches every order.
type Always struct{}

// Products matches when the order does (or does not) contain any of the
// listed product ids.
type Products struct {
	Operator SetOperator
	IDs      []int64
}

// Variations matches on product variation ids.
type Variations struct {
	Operator SetOperator
	IDs      []int64
}

// Categories matches on the categories of purchased products.
type Categories struct {
	Operator SetOperator
	IDs      []int64
}

// Amount compares the order total against a threshold.
type Amount struct {
	Operator  CompareOperator
	Threshold float64
}

// Roles matches the customer's roles against a configured role set.
type Roles struct {
	Operator MatchOperator
	Names    []string
}

// CustomField compares a custom order field against a configured value.
// Operator is one of is, is_not, contains, does_not_contain, lt, le, eq,
// ge, gt. Contains operators treat Value as a regular expression pattern
// matched against the stored value; this mirrors the original behavior and
// is almost certainly meant as a substring check, but changing it would
// silently alter which orders match existing merchant configurations.
type CustomField struct {
	Key      string
	Operator string
	Value    string
}

func (Always) conditionKind() string      { return "always" }
func (Products) conditionKind() string    { return "products" }
func (Variations) conditionKind() string  { return "variations" }
func (Categories) conditionKind() string  { return "categories" }
func (Amount) conditionKind() string      { return "amount" }
func (Roles) conditionKind() string       { return "roles" }
func (CustomField) conditionKind() string { return "custom" }

func validCompareOperator(op string) bool {
	switch CompareOperator(op) {
	case OpLt, OpLe, OpEq, OpGe, OpGt:
		return true
	}
	return false
}

func validCustomOperator(op string) bool {
	if validCompareOperator(op) {
		return true
	}
	switch op {
	case string(OpIs), string(OpIsNot), string(OpContains), string(OpDoesNotContain):
		return true
	}
	return false
}

// Validate reports configuration problems that would make a condition
// silently match nothing at evaluation time.
func Validate(c Condition) error {
	switch v := c.(type) {
	case Always:
		return nil
	case Products:
		return validateSetOperator(string(v.Operator))
	case Variations:
		return validateSetOperator(string(v.Operator))
	case Categories:
		return validateSetOperator(string(v.Operator))
	case Amount:
		if !validCompareOperator(string(v.Operator)) {
			return fmt.Errorf("invalid amount operator %q", v.Operator)
		}
		return nil
	case Roles:
		if v.Operator != OpIs && v.Operator != OpIsNot {
			return fmt.Errorf("invalid roles operator %q", v.Operator)
		}
		return nil
	case CustomField:
		if v.Key == "" {
			return fmt.Errorf("custom field condition requires a field key")
		}
		if !validCustomOperator(v.Operator) {
			return fmt.Errorf("invalid custom field operator %q", v.Operator)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition type %T", c)
	}
}

func validateSetOperator(op string) error {
	if SetOperator(op) != OpContains && SetOperator(op) != OpDoesNotContain {
		return fmt.Errorf("invalid set operator %q", op)
	}
	return nil
}
