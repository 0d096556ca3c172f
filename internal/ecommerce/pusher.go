// Package ecommerce pushes store, product and order data to the provider's
// e-commerce API so campaigns can attribute revenue.
package ecommerce

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/domain"
	"github.com/ignite/listbridge/internal/mailchimp"
	"github.com/ignite/listbridge/internal/metrics"
)

// Remote id prefixes. The provider keys every e-commerce resource by an
// opaque string id; prefixing keeps ours collision-free and recognizable.
const (
	orderIDPrefix    = "order_"
	customerIDPrefix = "user_"
	productIDPrefix  = "product_"
	lineIDPrefix     = "item_"
)

const metaEcommSent = "_ecomm_sent"

// StoreClient is the provider surface the pusher needs.
type StoreClient interface {
	GetStores(ctx context.Context) (*mailchimp.StoresResponse, error)
	CreateStore(ctx context.Context, store mailchimp.Store) (*mailchimp.Store, error)
	GetProduct(ctx context.Context, storeID, productID string) (*mailchimp.Product, error)
	CreateProduct(ctx context.Context, storeID string, product mailchimp.Product) (*mailchimp.Product, error)
	CreateVariant(ctx context.Context, storeID, productID string, variant mailchimp.Variant) (*mailchimp.Variant, error)
	CreateOrder(ctx context.Context, storeID string, order mailchimp.OrderParams) (*mailchimp.RemoteOrder, error)
	UpdateOrder(ctx context.Context, storeID, orderID string, fields map[string]interface{}) error
	DeleteOrder(ctx context.Context, storeID, orderID string) error
}

// OrderMeta is the per-order flag store, shared with the subscription layer.
type OrderMeta interface {
	Get(ctx context.Context, orderID int64, key string) (string, error)
	SetOnce(ctx context.Context, orderID int64, key, value string) error
}

// Pusher mirrors orders into the provider's e-commerce store.
type Pusher struct {
	cfg     config.EcommerceConfig
	baseURL string
	client  StoreClient
	orders  OrderMeta
	log     zerolog.Logger

	storeID string
}

// NewPusher creates an e-commerce pusher. baseURL identifies the storefront;
// its host derives the remote store id when none is configured.
func NewPusher(cfg config.EcommerceConfig, baseURL string, client StoreClient, orders OrderMeta, log zerolog.Logger) *Pusher {
	return &Pusher{
		cfg:     cfg,
		baseURL: baseURL,
		client:  client,
		orders:  orders,
		log:     log.With().Str("component", "ecommerce").Logger(),
	}
}

// StoreID returns the remote store id, deriving one from the storefront host
// when the configuration leaves it blank: lowercase alphanumerics of the
// host, capped at 32 characters.
func (p *Pusher) StoreID() string {
	if p.storeID != "" {
		return p.storeID
	}
	if p.cfg.StoreID != "" {
		p.storeID = p.cfg.StoreID
		return p.storeID
	}
	host := p.baseURL
	if u, err := url.Parse(p.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	var b strings.Builder
	for _, r := range strings.ToLower(host) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > 32 {
		id = id[:32]
	}
	p.storeID = id
	return p.storeID
}

// EnsureStore makes sure the remote store exists, creating it on first use.
func (p *Pusher) EnsureStore(ctx context.Context) error {
	storeID := p.StoreID()

	stores, err := p.client.GetStores(ctx)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}
	for _, s := range stores.Stores {
		if s.ID == storeID {
			return nil
		}
	}

	name := p.cfg.StoreName
	if name == "" {
		name = storeID
	}
	_, err = p.client.CreateStore(ctx, mailchimp.Store{
		ID:           storeID,
		ListID:       p.cfg.ListID,
		Name:         name,
		CurrencyCode: p.cfg.CurrencyCode,
	})
	if err != nil {
		return fmt.Errorf("create store %q: %w", storeID, err)
	}
	p.log.Info().Str("store_id", storeID).Msg("created remote store")
	return nil
}

// PushOrder mirrors one order into the remote store, creating any products it
// references on demand. At most one push per order; the sent flag is written
// only after the provider accepted the order.
func (p *Pusher) PushOrder(ctx context.Context, order *domain.Order) error {
	if !p.cfg.Enabled || !p.cfg.SendOrderData {
		return nil
	}

	sent, err := p.orders.Get(ctx, order.ID, metaEcommSent)
	if err != nil {
		return err
	}
	if sent != "" {
		return nil
	}

	email := order.BillingEmail()
	if email == "" {
		return nil
	}

	if err := p.EnsureStore(ctx); err != nil {
		metrics.EcommercePushes.WithLabelValues("order_create", "error").Inc()
		return err
	}

	lines, err := p.buildLines(ctx, order)
	if err != nil {
		metrics.EcommercePushes.WithLabelValues("order_create", "error").Inc()
		return err
	}

	campaignID, err := p.orders.Get(ctx, order.ID, "_mc_cid")
	if err != nil {
		return err
	}

	currency := order.Currency
	if currency == "" {
		currency = p.cfg.CurrencyCode
	}

	params := mailchimp.OrderParams{
		ID:              fmt.Sprintf("%s%d", orderIDPrefix, order.ID),
		Customer:        p.buildCustomer(order, email),
		FinancialStatus: order.Status,
		CurrencyCode:    currency,
		OrderTotal:      order.Total,
		Lines:           lines,
		CampaignID:      campaignID,
	}

	if _, err := p.client.CreateOrder(ctx, p.StoreID(), params); err != nil {
		metrics.EcommercePushes.WithLabelValues("order_create", "error").Inc()
		return fmt.Errorf("create remote order %s: %w", params.ID, err)
	}

	metrics.EcommercePushes.WithLabelValues("order_create", "ok").Inc()
	p.log.Info().Int64("order_id", order.ID).Msg("pushed order")
	return p.orders.SetOnce(ctx, order.ID, metaEcommSent, "1")
}

func (p *Pusher) buildCustomer(order *domain.Order, email string) mailchimp.Customer {
	id := customerIDPrefix + email
	if order.UserID > 0 {
		id = fmt.Sprintf("%s%d", customerIDPrefix, order.UserID)
	}
	first, _ := order.Field("billing_first_name")
	last, _ := order.Field("billing_last_name")
	return mailchimp.Customer{
		ID:           id,
		EmailAddress: email,
		FirstName:    first,
		LastName:     last,
		OptInStatus:  p.cfg.OptInAll,
	}
}

func (p *Pusher) buildLines(ctx context.Context, order *domain.Order) ([]mailchimp.OrderLine, error) {
	lines := make([]mailchimp.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		productID := fmt.Sprintf("%s%d", productIDPrefix, item.ProductID)
		variantID := productID
		if item.VariationID > 0 {
			variantID = fmt.Sprintf("%s%d", productIDPrefix, item.VariationID)
		}

		if err := p.ensureProduct(ctx, productID, variantID, item); err != nil {
			return nil, err
		}

		lines = append(lines, mailchimp.OrderLine{
			ID:               lineIDPrefix + item.Key,
			ProductID:        productID,
			ProductVariantID: variantID,
			Quantity:         item.Quantity,
			Price:            item.LineTotal,
		})
	}
	return lines, nil
}

// ensureProduct creates the remote product the first time an order references
// it, and the variant the first time that variation sells.
func (p *Pusher) ensureProduct(ctx context.Context, productID, variantID string, item domain.OrderItem) error {
	product, err := p.client.GetProduct(ctx, p.StoreID(), productID)
	if mailchimp.IsNotFound(err) {
		_, err = p.client.CreateProduct(ctx, p.StoreID(), mailchimp.Product{
			ID:       productID,
			Title:    item.Name,
			Variants: []mailchimp.Variant{{ID: variantID, Title: item.Name}},
		})
		if err != nil {
			metrics.EcommercePushes.WithLabelValues("product_create", "error").Inc()
			return fmt.Errorf("create remote product %s: %w", productID, err)
		}
		metrics.EcommercePushes.WithLabelValues("product_create", "ok").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("get remote product %s: %w", productID, err)
	}

	for _, v := range product.Variants {
		if v.ID == variantID {
			return nil
		}
	}
	if _, err := p.client.CreateVariant(ctx, p.StoreID(), productID, mailchimp.Variant{ID: variantID, Title: item.Name}); err != nil {
		return fmt.Errorf("create remote variant %s: %w", variantID, err)
	}
	return nil
}

// OrderStatusChanged propagates a status change to the already-pushed remote
// order. Orders never pushed are skipped.
func (p *Pusher) OrderStatusChanged(ctx context.Context, orderID int64, status string) error {
	if !p.cfg.Enabled || !p.cfg.UpdateOrderStatus {
		return nil
	}
	sent, err := p.orders.Get(ctx, orderID, metaEcommSent)
	if err != nil {
		return err
	}
	if sent == "" {
		return nil
	}

	remoteID := fmt.Sprintf("%s%d", orderIDPrefix, orderID)
	err = p.client.UpdateOrder(ctx, p.StoreID(), remoteID, map[string]interface{}{
		"financial_status": status,
	})
	if err != nil {
		metrics.EcommercePushes.WithLabelValues("order_update", "error").Inc()
		return fmt.Errorf("update remote order %s: %w", remoteID, err)
	}
	metrics.EcommercePushes.WithLabelValues("order_update", "ok").Inc()
	return nil
}

// OrderDeleted removes the remote copy of a cancelled or deleted order.
func (p *Pusher) OrderDeleted(ctx context.Context, orderID int64) error {
	if !p.cfg.Enabled || !p.cfg.DeleteOrderData {
		return nil
	}
	sent, err := p.orders.Get(ctx, orderID, metaEcommSent)
	if err != nil {
		return err
	}
	if sent == "" {
		return nil
	}

	remoteID := fmt.Sprintf("%s%d", orderIDPrefix, orderID)
	err = p.client.DeleteOrder(ctx, p.StoreID(), remoteID)
	if err != nil && !mailchimp.IsNotFound(err) {
		metrics.EcommercePushes.WithLabelValues("order_delete", "error").Inc()
		return fmt.Errorf("delete remote order %s: %w", remoteID, err)
	}
	metrics.EcommercePushes.WithLabelValues("order_delete", "ok").Inc()
	return nil
}
