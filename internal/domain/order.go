package domain

// OrderItem is a single purchased line on an order or cart.
type OrderItem struct {
	Key         string
	Name        string
	ProductID   int64
	VariationID int64
	CategoryIDs []int64
	Quantity    int
	LineTotal   float64
}

// Order is the read-only view of a store order that the subscription and
// e-commerce components consume. It is assembled by the storefront adapter
// and treated as opaque input here.
type Order struct {
	ID       int64
	UserID   int64
	Status   string
	Currency string
	Total    float64
	Items    []OrderItem

	// Fields holds billing/shipping/payment properties addressable by
	// field mappings, e.g. "billing_first_name", "shipping_country",
	// "payment_method_title", "shipping_method_title".
	Fields map[string]string

	// CustomFields holds order-level custom checkout fields.
	CustomFields map[string]string

	// Meta holds arbitrary order metadata (post meta in the original).
	Meta map[string]string
}

// BillingEmail returns the customer email for the order, empty when absent.
func (o *Order) BillingEmail() string {
	if o == nil || o.Fields == nil {
		return ""
	}
	return o.Fields["billing_email"]
}

// Field returns a named order property, empty when absent.
func (o *Order) Field(key string) (string, bool) {
	if o == nil || o.Fields == nil {
		return "", false
	}
	v, ok := o.Fields[key]
	return v, ok
}

// Cart is the pre-order view used when evaluating conditions on storefront
// pages where no order exists yet.
type Cart struct {
	Items []OrderItem
	Total float64
}
