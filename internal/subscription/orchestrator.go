// Package subscription decides who gets subscribed to what. It evaluates the
// configured conditions against orders and carts, resolves merge fields, and
// drives the provider client, recording idempotency flags so an order is
// processed at most once per channel.
package subscription

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/domain"
	"github.com/ignite/listbridge/internal/mailchimp"
	"github.com/ignite/listbridge/internal/membership"
	"github.com/ignite/listbridge/internal/metrics"
	"github.com/ignite/listbridge/internal/rules"
)

// Channel names the subscription path an order went through.
type Channel string

const (
	ChannelAuto     Channel = "auto"
	ChannelCheckbox Channel = "checkbox"
)

// Order meta keys written by the orchestrator.
const (
	metaNewOrder             = "_new_order"
	metaSubscribedPrefix     = "_subscribed_" // + channel
	metaSubscribeOnCompleted = "subscribe_on_completed"
	metaSubscribeOnPayment   = "subscribe_on_payment"
	metaPostedGroups         = "subscribe_groups"
	metaCampaignID           = "_mc_cid"
	metaEmailID              = "_mc_eid"
)

// Outcome reports what a subscribe call did.
type Outcome int

const (
	OutcomeSubscribed Outcome = iota
	OutcomeAlreadySubscribed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubscribed:
		return "subscribed"
	case OutcomeAlreadySubscribed:
		return "exists"
	default:
		return "failed"
	}
}

// ListClient is the provider surface the orchestrator needs.
type ListClient interface {
	PostMember(ctx context.Context, listID string, params mailchimp.MemberParams) (*mailchimp.Member, error)
	PutMember(ctx context.Context, listID string, params mailchimp.MemberParams) (*mailchimp.Member, error)
	DeleteMember(ctx context.Context, listID, email string) error
}

// OrderMeta is the per-order flag store.
type OrderMeta interface {
	Get(ctx context.Context, orderID int64, key string) (string, error)
	Set(ctx context.Context, orderID int64, key, value string) error
	SetOnce(ctx context.Context, orderID int64, key, value string) error
}

// UserMeta is the per-user attribute store consumed by field mappings and
// role conditions.
type UserMeta interface {
	GetString(ctx context.Context, userID int64, key string) (string, error)
	Roles(ctx context.Context, userID int64) ([]string, error)
}

// Orchestrator wires conditions, field mappings, membership tracking and the
// provider client into the order lifecycle.
type Orchestrator struct {
	cfg    *config.Config
	client ListClient
	store  *membership.Store
	orders OrderMeta
	users  UserMeta
	log    zerolog.Logger
}

// NewOrchestrator creates a subscription orchestrator.
func NewOrchestrator(cfg *config.Config, client ListClient, store *membership.Store, orders OrderMeta, users UserMeta, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		store:  store,
		orders: orders,
		users:  users,
		log:    log.With().Str("component", "subscription").Logger(),
	}
}

// Subscribe adds one address to one list and tracks the membership in both
// backends. The member-exists response from the provider is an outcome, not
// an error. channel is only used for instrumentation.
func (o *Orchestrator) Subscribe(ctx context.Context, jar membership.CookieJar, listID, email string, groups []string, mergeFields map[string]string, userID int64, channel string) (Outcome, error) {
	interests := map[string]bool{}
	for _, id := range groups {
		interests[id] = true
	}

	params := mailchimp.MemberParams{
		EmailAddress: email,
		Status:       mailchimp.StatusSubscribed,
		Interests:    interests,
		MergeFields:  mergeFields,
	}
	if len(interests) == 0 {
		params.Interests = nil
	}

	var err error
	if o.cfg.MailChimp.AlreadySubscribedAction == "update" {
		_, err = o.client.PutMember(ctx, listID, params)
	} else {
		_, err = o.client.PostMember(ctx, listID, params)
	}

	switch {
	case err == nil:
	case mailchimp.IsMemberExists(err):
		metrics.SubscribeAttempts.WithLabelValues(channel, OutcomeAlreadySubscribed.String()).Inc()
		return OutcomeAlreadySubscribed, nil
	default:
		metrics.SubscribeAttempts.WithLabelValues(channel, OutcomeFailed.String()).Inc()
		return OutcomeFailed, err
	}

	if err := o.store.Track(ctx, jar, membership.Subscribed, listID, email, groups, userID); err != nil {
		o.log.Error().Err(err).Str("list", listID).Msg("track subscribe failed")
	}
	if err := o.store.RemoveList(ctx, jar, membership.Unsubscribed, listID, userID); err != nil {
		o.log.Error().Err(err).Str("list", listID).Msg("clear unsubscribe record failed")
	}

	metrics.SubscribeAttempts.WithLabelValues(channel, OutcomeSubscribed.String()).Inc()
	return OutcomeSubscribed, nil
}

// Unsubscribe removes one address from one list and tracks the change.
// Membership records only move when the provider call succeeded.
func (o *Orchestrator) Unsubscribe(ctx context.Context, jar membership.CookieJar, listID, email string, userID int64) error {
	if err := o.client.DeleteMember(ctx, listID, email); err != nil {
		return err
	}
	if err := o.store.RemoveList(ctx, jar, membership.Subscribed, listID, userID); err != nil {
		o.log.Error().Err(err).Str("list", listID).Msg("clear subscribe record failed")
	}
	if err := o.store.Track(ctx, jar, membership.Unsubscribed, listID, email, nil, userID); err != nil {
		o.log.Error().Err(err).Str("list", listID).Msg("track unsubscribe failed")
	}
	metrics.Unsubscribes.WithLabelValues("checkout").Inc()
	return nil
}

// ProcessOrder runs one channel's sets against an order: condition check,
// do-not-resubscribe guard, group selection, field resolution, subscribe.
// On any non-failure outcome the per-channel flag is written so the order is
// never processed again for that channel. A provider failure leaves the flag
// unset; a later lifecycle event may retry.
func (o *Orchestrator) ProcessOrder(ctx context.Context, jar membership.CookieJar, order *domain.Order, channel Channel, postedForm map[string]string) error {
	email := order.BillingEmail()
	if email == "" {
		return nil
	}

	done, err := o.orders.Get(ctx, order.ID, metaSubscribedPrefix+string(channel))
	if err != nil {
		return err
	}
	if done != "" {
		return nil
	}

	roles, err := o.users.Roles(ctx, order.UserID)
	if err != nil {
		o.log.Warn().Err(err).Int64("user_id", order.UserID).Msg("role lookup failed")
	}
	evalCtx := rules.OrderContext(order, roles, postedForm)

	var postedGroups []string
	if channel == ChannelCheckbox {
		postedGroups, err = o.postedGroups(ctx, order.ID)
		if err != nil {
			return err
		}
	}

	subscribed := 0
	for _, set := range o.channelSets(channel) {
		cond, err := set.Condition.Build()
		if err != nil {
			o.log.Error().Err(err).Str("list", set.List).Msg("invalid condition, skipping set")
			continue
		}
		if !rules.Evaluate(cond, evalCtx) {
			continue
		}

		if channel == ChannelAuto && o.cfg.Checkout.Auto.DoNotResubscribe {
			unsubbed, err := o.store.ReadLists(ctx, membership.Unsubscribed, order.UserID, jar)
			if err != nil {
				o.log.Warn().Err(err).Msg("unsubscribe record read failed")
			} else if _, ok := unsubbed[set.List]; ok {
				o.log.Debug().Str("list", set.List).Str("email", email).Msg("previously unsubscribed, skipping")
				continue
			}
		}

		groups := groupIDs(set.Groups)
		if channel == ChannelCheckbox {
			groups = intersectGroups(set.Groups, postedGroups)
		}

		fields := o.ResolveFields(ctx, set.Fields, order, order.UserID)

		outcome, err := o.Subscribe(ctx, jar, set.List, email, groups, fields, order.UserID, string(channel))
		if err != nil {
			o.log.Error().Err(err).Str("list", set.List).Int64("order_id", order.ID).Msg("subscribe failed")
			continue
		}
		o.log.Info().
			Str("list", set.List).
			Str("outcome", outcome.String()).
			Int64("order_id", order.ID).
			Str("channel", string(channel)).
			Msg("order subscription processed")
		subscribed++
	}

	if subscribed > 0 {
		if err := o.orders.SetOnce(ctx, order.ID, metaSubscribedPrefix+string(channel), "1"); err != nil {
			return err
		}
	}
	return nil
}

// UnsubscribeAll removes the order's address from every list of one channel's
// sets. Used when a checkbox subscriber unticks consent on a later order.
func (o *Orchestrator) UnsubscribeAll(ctx context.Context, jar membership.CookieJar, order *domain.Order, channel Channel) error {
	email := order.BillingEmail()
	if email == "" {
		return nil
	}
	for _, set := range o.channelSets(channel) {
		if err := o.Unsubscribe(ctx, jar, set.List, email, order.UserID); err != nil {
			o.log.Error().Err(err).Str("list", set.List).Msg("unsubscribe failed")
		}
	}
	return nil
}

// CanSubscribeWithCheckbox reports whether the consent checkbox should be
/// offered: true when at least one checkbox set whose condition passes against
// the cart has a list the identity is not subscribed to yet.
func (o *Orchestrator) CanSubscribeWithCheckbox(ctx context.Context, jar membership.CookieJar, cart *domain.Cart, userID int64) (bool, error) {
	roles, err := o.users.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	evalCtx := rules.CartContext(cart, roles)

	subscribed, err := o.store.ReadLists(ctx, membership.Subscribed, userID, jar)
	if err != nil {
		return false, err
	}

	for _, set := range o.cfg.Checkout.Checkbox.Sets {
		cond, err := set.Condition.Build()
		if err != nil {
			continue
		}
		if !rules.Evaluate(cond, evalCtx) {
			continue
		}
		if _, ok := subscribed[set.List]; !ok {
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) channelSets(channel Channel) []config.Set {
	if channel == ChannelAuto {
		return o.cfg.Checkout.Auto.Sets
	}
	return o.cfg.Checkout.Checkbox.Sets
}

func (o *Orchestrator) postedGroups(ctx context.Context, orderID int64) ([]string, error) {
	raw, err := o.orders.Get(ctx, orderID, metaPostedGroups)
	if err != nil || raw == "" {
		return nil, err
	}
	var groups []string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		o.log.Warn().Err(err).Int64("order_id", orderID).Msg("bad posted groups blob")
		return nil, nil
	}
	return groups, nil
}
