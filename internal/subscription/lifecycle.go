package subscription

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/domain"
	"github.com/ignite/listbridge/internal/membership"
)

// CheckoutData carries the per-request checkout state the storefront posts
// alongside the order: consent checkbox, group picks, campaign tracking ids.
type CheckoutData struct {
	// ConsentGiven is the checkbox state. Only meaningful when the
	// checkbox channel is active.
	ConsentGiven bool

	// Groups are the interest ids the customer ticked on the checkout
	// form.
	Groups []string

	// CampaignID and EmailID are the provider's campaign tracking ids
	// captured from landing cookies, used to attribute e-commerce orders.
	CampaignID string
	EmailID    string

	// Form is the raw posted checkout form, consulted by custom-field
	// conditions as a last-resort source.
	Form map[string]string
}

// NewOrder handles order placement. Channels configured for checkout fire
// immediately; channels configured for completion or payment leave a deferred
// marker that OrderCompleted picks up. Campaign ids and group picks are
// persisted on the order either way so deferred processing sees them.
func (o *Orchestrator) NewOrder(ctx context.Context, jar membership.CookieJar, order *domain.Order, data CheckoutData) error {
	if !o.cfg.MailChimp.Enabled {
		return nil
	}

	processed, err := o.orders.Get(ctx, order.ID, metaNewOrder)
	if err != nil {
		return err
	}
	if processed != "" {
		return nil
	}

	if err := o.persistCheckoutData(ctx, order.ID, data); err != nil {
		return err
	}

	if on := o.cfg.Checkout.Auto.SubscribeOn; on != config.SubscribeDisabled {
		if err := o.runOrDefer(ctx, jar, order, ChannelAuto, on, data.Form); err != nil {
			return err
		}
	}

	if on := o.cfg.Checkout.Checkbox.SubscribeOn; on != config.SubscribeDisabled {
		if !data.ConsentGiven {
			// An unticked box from someone already on a checkbox list
			// is an explicit opt-out.
			if err := o.handleConsentWithdrawn(ctx, jar, order); err != nil {
				return err
			}
		} else if err := o.runOrDefer(ctx, jar, order, ChannelCheckbox, on, data.Form); err != nil {
			return err
		}
	}

	return o.orders.SetOnce(ctx, order.ID, metaNewOrder, "1")
}

func (o *Orchestrator) runOrDefer(ctx context.Context, jar membership.CookieJar, order *domain.Order, channel Channel, on config.SubscribeOn, form map[string]string) error {
	switch on {
	case config.SubscribeOnCheckout:
		return o.ProcessOrder(ctx, jar, order, channel, form)
	case config.SubscribeOnCompleted:
		return o.appendDeferred(ctx, order.ID, metaSubscribeOnCompleted, channel)
	case config.SubscribeOnPayment:
		return o.appendDeferred(ctx, order.ID, metaSubscribeOnPayment, channel)
	}
	return nil
}

// appendDeferred records a channel under a deferred-processing marker. Both
// channels can defer to the same event.
func (o *Orchestrator) appendDeferred(ctx context.Context, orderID int64, key string, channel Channel) error {
	existing, err := o.orders.Get(ctx, orderID, key)
	if err != nil {
		return err
	}
	for _, c := range splitChannels(existing) {
		if c == channel {
			return nil
		}
	}
	value := string(channel)
	if existing != "" {
		value = existing + "," + value
	}
	return o.orders.Set(ctx, orderID, key, value)
}

func splitChannels(value string) []Channel {
	var out []Channel
	for _, c := range []Channel{ChannelAuto, ChannelCheckbox} {
		if containsChannel(value, c) {
			out = append(out, c)
		}
	}
	return out
}

func containsChannel(value string, c Channel) bool {
	for _, part := range strings.Split(value, ",") {
		if part == string(c) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) handleConsentWithdrawn(ctx context.Context, jar membership.CookieJar, order *domain.Order) error {
	subscribed, err := o.store.ReadLists(ctx, membership.Subscribed, order.UserID, jar)
	if err != nil {
		return err
	}
	onAnyList := false
	for _, set := range o.cfg.Checkout.Checkbox.Sets {
		if _, ok := subscribed[set.List]; ok {
			onAnyList = true
			break
		}
	}
	if !onAnyList {
		return nil
	}
	return o.UnsubscribeAll(ctx, jar, order, ChannelCheckbox)
}

func (o *Orchestrator) persistCheckoutData(ctx context.Context, orderID int64, data CheckoutData) error {
	if data.CampaignID != "" {
		if err := o.orders.SetOnce(ctx, orderID, metaCampaignID, data.CampaignID); err != nil {
			return err
		}
	}
	if data.EmailID != "" {
		if err := o.orders.SetOnce(ctx, orderID, metaEmailID, data.EmailID); err != nil {
			return err
		}
	}
	if len(data.Groups) > 0 {
		raw, err := json.Marshal(data.Groups)
		if err != nil {
			return err
		}
		if err := o.orders.SetOnce(ctx, orderID, metaPostedGroups, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// OrderCompleted handles the completion event. Channels that deferred to
// completion always fire; channels that deferred to payment fire only when
// the order was actually paid.
func (o *Orchestrator) OrderCompleted(ctx context.Context, jar membership.CookieJar, order *domain.Order, paid bool) error {
	if !o.cfg.MailChimp.Enabled {
		return nil
	}

	onCompleted, err := o.orders.Get(ctx, order.ID, metaSubscribeOnCompleted)
	if err != nil {
		return err
	}
	onPayment, err := o.orders.Get(ctx, order.ID, metaSubscribeOnPayment)
	if err != nil {
		return err
	}

	pending := splitChannels(onCompleted)
	if paid {
		for _, c := range splitChannels(onPayment) {
			if !containsChannel(onCompleted, c) {
				pending = append(pending, c)
			}
		}
	}

	for _, channel := range pending {
		if err := o.ProcessOrder(ctx, jar, order, channel, nil); err != nil {
			return err
		}
	}
	return nil
}
