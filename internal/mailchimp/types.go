package mailchimp

// AccountInfo is the account root resource, used for API key validation.
type AccountInfo struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Email       string `json:"email"`
	TotalSubs   int    `json:"total_subscribers"`
}

// List is a mailing list ("audience").
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListsResponse wraps the lists collection.
type ListsResponse struct {
	Lists      []List `json:"lists"`
	TotalItems int    `json:"total_items"`
}

// MergeField is a named custom attribute attached to list members.
type MergeField struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// MergeFieldsResponse wraps the merge-fields collection of a list.
type MergeFieldsResponse struct {
	MergeFields []MergeField `json:"merge_fields"`
	TotalItems  int          `json:"total_items"`
}

// InterestCategory groups interests ("groups") within a list.
type InterestCategory struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// InterestCategoriesResponse wraps the interest-categories collection.
type InterestCategoriesResponse struct {
	Categories []InterestCategory `json:"categories"`
	TotalItems int                `json:"total_items"`
}

// Interest is a tag-like membership category within a list.
type Interest struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

// InterestsResponse wraps the interests collection of a category.
type InterestsResponse struct {
	Interests  []Interest `json:"interests"`
	TotalItems int        `json:"total_items"`
}

// Member is a list member resource.
type Member struct {
	ID           string            `json:"id"`
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	Interests    map[string]bool   `json:"interests"`
	MergeFields  map[string]string `json:"merge_fields"`
}

// MemberParams is the create/update payload for a member. Empty optional
// maps are omitted from the request body.
type MemberParams struct {
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	Interests    map[string]bool   `json:"interests,omitempty"`
	MergeFields  map[string]string `json:"merge_fields,omitempty"`
}

// Member statuses accepted by the provider.
const (
	StatusSubscribed = "subscribed"
	StatusPending    = "pending"
)

// Store is an e-commerce store resource.
type Store struct {
	ID           string `json:"id"`
	ListID       string `json:"list_id"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
}

// StoresResponse wraps the stores collection.
type StoresResponse struct {
	Stores     []Store `json:"stores"`
	TotalItems int     `json:"total_items"`
}

// Variant is a product variant resource.
type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Product is an e-commerce product resource.
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Customer identifies the buyer on an e-commerce order.
type Customer struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	OptInStatus  bool   `json:"opt_in_status"`
}

// OrderLine is one purchased item on an e-commerce order.
type OrderLine struct {
	ID               string  `json:"id"`
	ProductID        string  `json:"product_id"`
	ProductVariantID string  `json:"product_variant_id"`
	Quantity         int     `json:"quantity"`
	Price            float64 `json:"price"`
}

// OrderParams is the create payload for an e-commerce order.
type OrderParams struct {
	ID              string      `json:"id"`
	Customer        Customer    `json:"customer"`
	FinancialStatus string      `json:"financial_status"`
	CurrencyCode    string      `json:"currency_code"`
	OrderTotal      float64     `json:"order_total"`
	Lines           []OrderLine `json:"lines"`
	CampaignID      string      `json:"campaign_id,omitempty"`
}

// RemoteOrder is the order resource as stored by the provider.
type RemoteOrder struct {
	ID              string `json:"id"`
	FinancialStatus string `json:"financial_status"`
}
