package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/listbridge/internal/domain"
	"github.com/ignite/listbridge/internal/subscription"
)

// orderPayload is the storefront adapter's JSON rendering of an order.
type orderPayload struct {
	ID           int64             `json:"id"`
	UserID       int64             `json:"user_id"`
	Status       string            `json:"status"`
	Currency     string            `json:"currency"`
	Total        float64           `json:"total"`
	Items        []itemPayload     `json:"items"`
	Fields       map[string]string `json:"fields"`
	CustomFields map[string]string `json:"custom_fields"`
	Meta         map[string]string `json:"meta"`
}

type itemPayload struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	ProductID   int64   `json:"product_id"`
	VariationID int64   `json:"variation_id"`
	CategoryIDs []int64 `json:"category_ids"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

func (p orderPayload) toDomain() *domain.Order {
	items := make([]domain.OrderItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, domain.OrderItem{
			Key:         it.Key,
			Name:        it.Name,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			CategoryIDs: it.CategoryIDs,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return &domain.Order{
		ID:           p.ID,
		UserID:       p.UserID,
		Status:       p.Status,
		Currency:     p.Currency,
		Total:        p.Total,
		Items:        items,
		Fields:       p.Fields,
		CustomFields: p.CustomFields,
		Meta:         p.Meta,
	}
}

type newOrderRequest struct {
	Order      orderPayload      `json:"order"`
	Consent    bool              `json:"consent"`
	Groups     []string          `json:"groups"`
	CampaignID string            `json:"campaign_id"`
	EmailID    string            `json:"email_id"`
	Form       map[string]string `json:"form"`
}

// handleNewOrder processes order placement: immediate or deferred
// subscriptions plus the e-commerce push.
func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	var req newOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed order payload")
		return
	}
	if req.Order.ID == 0 {
		respondError(w, http.StatusBadRequest, "order id is required")
		return
	}

	order := req.Order.toDomain()
	jar := newRequestJar(w, r)
	ctx := r.Context()

	if err := s.orch.NewOrder(ctx, jar, order, subscription.CheckoutData{
		ConsentGiven: req.Consent,
		Groups:       req.Groups,
		CampaignID:   req.CampaignID,
		EmailID:      req.EmailID,
		Form:         req.Form,
	}); err != nil {
		s.log.Error().Err(err).Int64("order_id", order.ID).Msg("new order processing failed")
		respondError(w, http.StatusInternalServerError, "order processing failed")
		return
	}

	if err := s.pusher.PushOrder(ctx, order); err != nil {
		// Subscription work already landed; the push can be retried from
		// a later status event.
		s.log.Error().Err(err).Int64("order_id", order.ID).Msg("ecommerce push failed")
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type completedRequest struct {
	Order orderPayload `json:"order"`
	Paid  bool         `json:"paid"`
}

// handleOrderCompleted runs subscriptions deferred to completion or payment
// and propagates the status to the remote store.
func (s *Server) handleOrderCompleted(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad order id")
		return
	}

	var req completedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed order payload")
		return
	}
	req.Order.ID = orderID

	order := req.Order.toDomain()
	jar := newRequestJar(w, r)
	ctx := r.Context()

	if err := s.orch.OrderCompleted(ctx, jar, order, req.Paid); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("completion processing failed")
		respondError(w, http.StatusInternalServerError, "order processing failed")
		return
	}

	if err := s.pusher.PushOrder(ctx, order); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("ecommerce push failed")
	}
	if err := s.pusher.OrderStatusChanged(ctx, orderID, order.Status); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("ecommerce status update failed")
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleOrderStatus propagates a bare status change to the remote store.
func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad order id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := s.pusher.OrderStatusChanged(r.Context(), orderID, req.Status); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("ecommerce status update failed")
		respondError(w, http.StatusInternalServerError, "status update failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleOrderDeleted removes the remote copy of a cancelled/deleted order.
func (s *Server) handleOrderDeleted(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad order id")
		return
	}

	if err := s.pusher.OrderDeleted(r.Context(), orderID); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("ecommerce delete failed")
		respondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type checkboxRequest struct {
	UserID int64 `json:"user_id"`
	Cart   struct {
		Items []itemPayload `json:"items"`
		Total float64       `json:"total"`
	} `json:"cart"`
}

// handleCheckboxAvailability tells the storefront whether to render the
// consent checkbox for this cart and identity.
func (s *Server) handleCheckboxAvailability(w http.ResponseWriter, r *http.Request) {
	var req checkboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed cart payload")
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Cart.Items))
	for _, it := range req.Cart.Items {
		items = append(items, domain.OrderItem{
			Key:         it.Key,
			Name:        it.Name,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			CategoryIDs: it.CategoryIDs,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	cart := &domain.Cart{Items: items, Total: req.Cart.Total}

	jar := newRequestJar(w, r)
	show, err := s.orch.CanSubscribeWithCheckbox(r.Context(), jar, cart, req.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("checkbox availability check failed")
		respondError(w, http.StatusInternalServerError, "availability check failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"show":            show && s.cfg.Checkout.Checkbox.SubscribeOn != "disabled" && s.cfg.MailChimp.Enabled,
		"default_checked": s.cfg.Checkout.Checkbox.DefaultChecked,
	})
}
