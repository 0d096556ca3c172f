package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultDataCenter = "us1"
	apiRootTemplate   = "https://%s.api.mailchimp.com/3.0/"

	connectTimeout = 30 * time.Second
	requestTimeout = 600 * time.Second
)

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin MailChimp v3 API client. Calls are stateless and carry no
// retry logic; callers decide how to handle failures.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	log        zerolog.Logger
}

// NewClient creates a client for the given API key. The key may carry a
// data-center suffix ("key-us6") which selects the request host; without one
// the default data center is used.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: fmt.Sprintf(apiRootTemplate, DataCenter(apiKey)),
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		log: log.With().Str("component", "mailchimp").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

// SetBaseURL overrides the request host (useful for testing).
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/") + "/"
}

// DataCenter extracts the data-center suffix from an API key.
func DataCenter(apiKey string) string {
	if _, dc, ok := strings.Cut(apiKey, "-"); ok && dc != "" {
		return dc
	}
	return defaultDataCenter
}

// MemberHash returns the member resource id for an email address: the md5 of
// its lowercase form. Hashing makes member lookups idempotent and
// case-insensitive.
func MemberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

// call issues a single authenticated request. GET params become the query
// string, other verbs send a JSON body. The decoded response is normalized
// by stripping pagination/link metadata before being returned.
func (c *Client) call(ctx context.Context, method, path string, params interface{}) (map[string]interface{}, error) {
	reqURL := c.baseURL + strings.TrimLeft(path, "/")

	var reqBody io.Reader
	if params != nil {
		if method == http.MethodGet {
			query, err := queryString(params)
			if err != nil {
				return nil, fmt.Errorf("failed to encode query params: %w", err)
			}
			if query != "" {
				reqURL += "?" + query
			}
		} else {
			jsonBody, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewBuffer(jsonBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("User-Agent", "listbridge/3.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	var decoded map[string]interface{}
	if len(respBody) > 0 {
		// DELETE returns 204 with an empty body; anything else is JSON.
		if err := json.Unmarshal(respBody, &decoded); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	decoded = stripLinks(decoded)

	if resp.StatusCode >= 400 {
		return nil, apiError(resp.StatusCode, decoded)
	}

	return decoded, nil
}

// callInto runs call and decodes the normalized response into out.
func (c *Client) callInto(ctx context.Context, method, path string, params, out interface{}) error {
	result, err := c.call(ctx, method, path, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to re-encode response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func apiError(status int, body map[string]interface{}) error {
	apiErr := &APIError{Status: status}
	if title, ok := body["title"].(string); ok {
		apiErr.Title = title
	}
	if detail, ok := body["detail"].(string); ok {
		apiErr.Detail = detail
	}
	if apiErr.Title == "" && apiErr.Detail == "" {
		raw, _ := json.Marshal(body)
		apiErr.Title = "Unexpected error"
		apiErr.Detail = string(raw)
	}
	return apiErr
}

// stripLinks removes "_links" arrays from a decoded response: at the top
// level, one level into any nested object, and from each element of any
// array of resource objects. The link metadata dominates response size and
// nothing downstream reads it.
func stripLinks(result map[string]interface{}) map[string]interface{} {
	if result == nil {
		return nil
	}
	delete(result, "_links")

	for key, value := range result {
		switch nested := value.(type) {
		case map[string]interface{}:
			delete(nested, "_links")
			result[key] = nested
		case []interface{}:
			for i, element := range nested {
				if item, ok := element.(map[string]interface{}); ok {
					delete(item, "_links")
					nested[i] = item
				}
			}
			result[key] = nested
		}
	}
	return result
}

func queryString(params interface{}) (string, error) {
	switch p := params.(type) {
	case url.Values:
		return p.Encode(), nil
	case map[string]string:
		values := url.Values{}
		for k, v := range p {
			values.Set(k, v)
		}
		return values.Encode(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported query params type %T", params)
	}
}

var defaultCount = map[string]string{"count": "100"}

// Ping calls the account root, validating the API key.
func (c *Client) Ping(ctx context.Context) (*AccountInfo, error) {
	var account AccountInfo
	if err := c.callInto(ctx, http.MethodGet, "", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetLists retrieves the account's mailing lists.
func (c *Client) GetLists(ctx context.Context) (*ListsResponse, error) {
	var lists ListsResponse
	if err := c.callInto(ctx, http.MethodGet, "lists", defaultCount, &lists); err != nil {
		return nil, err
	}
	return &lists, nil
}

// GetMergeFields retrieves the merge fields of a list.
func (c *Client) GetMergeFields(ctx context.Context, listID string) (*MergeFieldsResponse, error) {
	var fields MergeFieldsResponse
	if err := c.callInto(ctx, http.MethodGet, "lists/"+listID+"/merge-fields", defaultCount, &fields); err != nil {
		return nil, err
	}
	return &fields, nil
}

// GetInterestCategories retrieves the interest categories of a list.
func (c *Client) GetInterestCategories(ctx context.Context, listID string) (*InterestCategoriesResponse, error) {
	var categories InterestCategoriesResponse
	if err := c.callInto(ctx, http.MethodGet, "lists/"+listID+"/interest-categories", defaultCount, &categories); err != nil {
		return nil, err
	}
	return &categories, nil
}

// GetInterests retrieves the interests of an interest category.
func (c *Client) GetInterests(ctx context.Context, listID, categoryID string) (*InterestsResponse, error) {
	var interests InterestsResponse
	path := "lists/" + listID + "/interest-categories/" + categoryID + "/interests"
	if err := c.callInto(ctx, http.MethodGet, path, defaultCount, &interests); err != nil {
		return nil, err
	}
	return &interests, nil
}

// GetMember retrieves a list member by email address.
func (c *Client) GetMember(ctx context.Context, listID, email string) (*Member, error) {
	var member Member
	path := "lists/" + listID + "/members/" + MemberHash(email)
	if err := c.callInto(ctx, http.MethodGet, path, nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// MemberInterests returns the set of interest ids the member is subscribed
// to, dropping the interests the provider reports as false.
func (c *Client) MemberInterests(ctx context.Context, listID, email string) (map[string]bool, error) {
	member, err := c.GetMember(ctx, listID, email)
	if err != nil {
		return nil, err
	}
	interests := make(map[string]bool)
	for id, subscribed := range member.Interests {
		if subscribed {
			interests[id] = true
		}
	}
	return interests, nil
}

// PostMember subscribes a new member to a list. Fails with a member-exists
// APIError when the address is already on the list.
func (c *Client) PostMember(ctx context.Context, listID string, params MemberParams) (*Member, error) {
	var member Member
	if err := c.callInto(ctx, http.MethodPost, "lists/"+listID+"/members", params, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// PutMember subscribes or updates a member, keyed by the email hash.
func (c *Client) PutMember(ctx context.Context, listID string, params MemberParams) (*Member, error) {
	var member Member
	path := "lists/" + listID + "/members/" + MemberHash(params.EmailAddress)
	if err := c.callInto(ctx, http.MethodPut, path, params, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// DeleteMember removes a member from a list.
func (c *Client) DeleteMember(ctx context.Context, listID, email string) error {
	path := "lists/" + listID + "/members/" + MemberHash(email)
	return c.callInto(ctx, http.MethodDelete, path, nil, nil)
}

// GetStores retrieves the account's e-commerce stores.
func (c *Client) GetStores(ctx context.Context) (*StoresResponse, error) {
	var stores StoresResponse
	if err := c.callInto(ctx, http.MethodGet, "ecommerce/stores/", defaultCount, &stores); err != nil {
		return nil, err
	}
	return &stores, nil
}

// CreateStore creates an e-commerce store.
func (c *Client) CreateStore(ctx context.Context, store Store) (*Store, error) {
	var created Store
	if err := c.callInto(ctx, http.MethodPost, "ecommerce/stores/", store, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetProduct retrieves a product from a store.
func (c *Client) GetProduct(ctx context.Context, storeID, productID string) (*Product, error) {
	var product Product
	path := "ecommerce/stores/" + storeID + "/products/" + productID
	if err := c.callInto(ctx, http.MethodGet, path, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct creates a product in a store.
func (c *Client) CreateProduct(ctx context.Context, storeID string, product Product) (*Product, error) {
	var created Product
	path := "ecommerce/stores/" + storeID + "/products/"
	if err := c.callInto(ctx, http.MethodPost, path, product, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateVariant adds a variant to an existing product.
func (c *Client) CreateVariant(ctx context.Context, storeID, productID string, variant Variant) (*Variant, error) {
	var created Variant
	path := "ecommerce/stores/" + storeID + "/products/" + productID + "/variants/"
	if err := c.callInto(ctx, http.MethodPost, path, variant, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetOrder retrieves an e-commerce order.
func (c *Client) GetOrder(ctx context.Context, storeID, orderID string) (*RemoteOrder, error) {
	var order RemoteOrder
	path := "ecommerce/stores/" + storeID + "/orders/" + orderID
	if err := c.callInto(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder creates an e-commerce order.
func (c *Client) CreateOrder(ctx context.Context, storeID string, order OrderParams) (*RemoteOrder, error) {
	var created RemoteOrder
	path := "ecommerce/stores/" + storeID + "/orders/"
	if err := c.callInto(ctx, http.MethodPost, path, order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateOrder patches fields of an existing e-commerce order.
func (c *Client) UpdateOrder(ctx context.Context, storeID, orderID string, fields map[string]interface{}) error {
	path := "ecommerce/stores/" + storeID + "/orders/" + orderID
	return c.callInto(ctx, http.MethodPatch, path, fields, nil)
}

// DeleteOrder removes an e-commerce order.
func (c *Client) DeleteOrder(ctx context.Context, storeID, orderID string) error {
	path := "ecommerce/stores/" + storeID + "/orders/" + orderID
	return c.callInto(ctx, http.MethodDelete, path, nil, nil)
}
