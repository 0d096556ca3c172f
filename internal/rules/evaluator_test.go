package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/listbridge/internal/domain"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:     42,
		UserID: 7,
		Total:  150.00,
		Items: []domain.OrderItem{
			{Key: "a", Name: "Shirt", ProductID: 10, VariationID: 101, CategoryIDs: []int64{1, 2}, Quantity: 2, LineTotal: 50},
			{Key: "b", Name: "Mug", ProductID: 20, CategoryIDs: []int64{3}, Quantity: 1, LineTotal: 100},
		},
		Fields: map[string]string{"billing_email": "buyer@example.com"},
		CustomFields: map[string]string{
			"gift_note": "happy birthday",
			"_loyalty":  "gold",
		},
		Meta: map[string]string{"points": "250"},
	}
}

func TestEvaluateAlways(t *testing.T) {
	assert.True(t, Evaluate(Always{}, OrderContext(testOrder(), nil, nil)))
}

func TestEvaluateProducts(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, nil)

	assert.True(t, Evaluate(Products{Operator: OpContains, IDs: []int64{10}}, ctx))
	assert.True(t, Evaluate(Products{Operator: OpContains, IDs: []int64{99, 20}}, ctx))
	assert.False(t, Evaluate(Products{Operator: OpContains, IDs: []int64{99}}, ctx))

	assert.False(t, Evaluate(Products{Operator: OpDoesNotContain, IDs: []int64{10}}, ctx))
	assert.True(t, Evaluate(Products{Operator: OpDoesNotContain, IDs: []int64{99}}, ctx))

	assert.False(t, Evaluate(Products{Operator: "bogus", IDs: []int64{10}}, ctx),
		"unknown operator never matches")
}

func TestEvaluateVariations(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, nil)

	assert.True(t, Evaluate(Variations{Operator: OpContains, IDs: []int64{101}}, ctx))
	assert.False(t, Evaluate(Variations{Operator: OpContains, IDs: []int64{10}}, ctx),
		"product ids do not match as variation ids")
}

func TestEvaluateCategories(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, nil)

	assert.True(t, Evaluate(Categories{Operator: OpContains, IDs: []int64{2}}, ctx))
	assert.True(t, Evaluate(Categories{Operator: OpDoesNotContain, IDs: []int64{77}}, ctx))
	assert.False(t, Evaluate(Categories{Operator: OpDoesNotContain, IDs: []int64{3}}, ctx))
}

func TestEvaluateAmount(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, nil) // total 150

	cases := []struct {
		op        CompareOperator
		threshold float64
		want      bool
	}{
		{OpLt, 200, true},
		{OpLt, 150, false},
		{OpLe, 150, true},
		{OpEq, 150, true},
		{OpEq, 149, false},
		{OpGe, 150, true},
		{OpGt, 150, false},
		{OpGt, 100, true},
	}
	for _, tc := range cases {
		got := Evaluate(Amount{Operator: tc.op, Threshold: tc.threshold}, ctx)
		assert.Equal(t, tc.want, got, "total 150 %s %v", tc.op, tc.threshold)
	}
}

func TestEvaluateRoles(t *testing.T) {
	ctx := OrderContext(testOrder(), []string{"customer", "wholesale"}, nil)

	assert.True(t, Evaluate(Roles{Operator: OpIs, Names: []string{"wholesale"}}, ctx))
	assert.False(t, Evaluate(Roles{Operator: OpIs, Names: []string{"admin"}}, ctx))
	assert.True(t, Evaluate(Roles{Operator: OpIsNot, Names: []string{"admin"}}, ctx))
	assert.False(t, Evaluate(Roles{Operator: OpIsNot, Names: []string{"customer"}}, ctx))

	anon := OrderContext(testOrder(), nil, nil)
	assert.False(t, Evaluate(Roles{Operator: OpIs, Names: []string{"customer"}}, anon))
	assert.True(t, Evaluate(Roles{Operator: OpIsNot, Names: []string{"customer"}}, anon))
}

func TestEvaluateCustomFieldLookup(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, map[string]string{"utm_source": "newsletter"})

	// Plain key in checkout custom fields.
	assert.True(t, Evaluate(CustomField{Key: "gift_note", Operator: "is", Value: "happy birthday"}, ctx))
	// Underscore-prefixed storage is found through the bare key.
	assert.True(t, Evaluate(CustomField{Key: "loyalty", Operator: "is", Value: "gold"}, ctx))
	// Order meta is consulted after custom fields.
	assert.True(t, Evaluate(CustomField{Key: "points", Operator: "is", Value: "250"}, ctx))
	// The posted form is the last resort.
	assert.True(t, Evaluate(CustomField{Key: "utm_source", Operator: "is", Value: "newsletter"}, ctx))
	// A missing field never matches, whatever the operator.
	assert.False(t, Evaluate(CustomField{Key: "absent", Operator: "is_not", Value: "x"}, ctx))
}

func TestEvaluateCustomFieldOperators(t *testing.T) {
	ctx := OrderContext(testOrder(), nil, nil)

	// "contains" treats the configured value as a regular expression.
	assert.True(t, Evaluate(CustomField{Key: "gift_note", Operator: "contains", Value: "birth"}, ctx))
	assert.True(t, Evaluate(CustomField{Key: "gift_note", Operator: "contains", Value: "^happy"}, ctx))
	assert.False(t, Evaluate(CustomField{Key: "gift_note", Operator: "contains", Value: "("}, ctx),
		"an uncompilable pattern matches nothing")
	assert.True(t, Evaluate(CustomField{Key: "gift_note", Operator: "does_not_contain", Value: "xyz"}, ctx))

	// Numeric comparisons put the configured value on the left.
	assert.True(t, Evaluate(CustomField{Key: "points", Operator: "lt", Value: "100"}, ctx), "100 < 250")
	assert.False(t, Evaluate(CustomField{Key: "points", Operator: "gt", Value: "100"}, ctx), "100 > 250 is false")

	// Loose equality compares numerically when both sides parse.
	assert.True(t, Evaluate(CustomField{Key: "points", Operator: "is", Value: "250.0"}, ctx))
	assert.True(t, Evaluate(CustomField{Key: "points", Operator: "is_not", Value: "251"}, ctx))
}

func TestEvaluateCustomFieldCartSkips(t *testing.T) {
	cart := &domain.Cart{Items: []domain.OrderItem{{ProductID: 10}}, Total: 10}
	ctx := CartContext(cart, nil)

	// Pre-order there is nothing to check against, so the condition is
	// treated as satisfied and the set stays eligible.
	assert.True(t, Evaluate(CustomField{Key: "anything", Operator: "is", Value: "x"}, ctx))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Always{}))
	assert.NoError(t, Validate(Products{Operator: OpContains, IDs: []int64{1}}))
	assert.Error(t, Validate(Products{Operator: "bogus", IDs: []int64{1}}))
	assert.Error(t, Validate(Amount{Operator: "between"}))
	assert.Error(t, Validate(CustomField{Operator: "is"}), "key is required")
}
