package rules

import "github.com/ignite/listbridge/internal/domain"

// Context carries everything a condition can be evaluated against. Exactly
// one of the order/cart views backs Items and Total; CartOnly marks the
// pre-order case where order-scoped data is not available yet.
type Context struct {
	Items         []domain.OrderItem
	Total         float64
	CustomerRoles []string

	// CartOnly is true when evaluating against cart contents on a
	// storefront page, before any order exists.
	CartOnly bool

	// Order-scoped custom field sources, in lookup priority order:
	// checkout custom fields, then order meta, then the posted form of
	// the current request.
	CustomFields map[string]string
	OrderMeta    map[string]string
	PostedForm   map[string]string
}

// OrderContext builds an evaluation context from an order.
func OrderContext(order *domain.Order, roles []string, postedForm map[string]string) *Context {
	return &Context{
		Items:         order.Items,
		Total:         order.Total,
		CustomerRoles: roles,
		CustomFields:  order.CustomFields,
		OrderMeta:     order.Meta,
		PostedForm:    postedForm,
	}
}

// CartContext builds an evaluation context from cart contents.
func CartContext(cart *domain.Cart, roles []string) *Context {
	return &Context{
		Items:         cart.Items,
		Total:         cart.Total,
		CustomerRoles: roles,
		CartOnly:      true,
	}
}

// lookupCustomField resolves a custom field value by key, trying the plain
// key and its underscore-prefixed variant in each source. First hit wins.
func (c *Context) lookupCustomField(key string) (string, bool) {
	for _, source := range []map[string]string{c.CustomFields, c.OrderMeta} {
		if source == nil {
			continue
		}
		if v, ok := source[key]; ok && v != "" {
			return v, true
		}
		if v, ok := source["_"+key]; ok && v != "" {
			return v, true
		}
	}
	if c.PostedForm != nil {
		if v, ok := c.PostedForm[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}
