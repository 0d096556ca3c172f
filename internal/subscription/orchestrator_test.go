package subscription

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/domain"
	"github.com/ignite/listbridge/internal/mailchimp"
	"github.com/ignite/listbridge/internal/membership"
)

type subscribeCall struct {
	method string
	listID string
	params mailchimp.MemberParams
}

type fakeListClient struct {
	calls   []subscribeCall
	deletes []string
	err     error
}

func (f *fakeListClient) PostMember(_ context.Context, listID string, params mailchimp.MemberParams) (*mailchimp.Member, error) {
	f.calls = append(f.calls, subscribeCall{method: "POST", listID: listID, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &mailchimp.Member{EmailAddress: params.EmailAddress, Status: params.Status}, nil
}

func (f *fakeListClient) PutMember(_ context.Context, listID string, params mailchimp.MemberParams) (*mailchimp.Member, error) {
	f.calls = append(f.calls, subscribeCall{method: "PUT", listID: listID, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &mailchimp.Member{EmailAddress: params.EmailAddress, Status: params.Status}, nil
}

func (f *fakeListClient) DeleteMember(_ context.Context, listID, email string) error {
	f.deletes = append(f.deletes, listID+"/"+email)
	return f.err
}

type fakeOrderMeta struct {
	data map[string]string
}

func newFakeOrderMeta() *fakeOrderMeta { return &fakeOrderMeta{data: map[string]string{}} }

func (f *fakeOrderMeta) key(orderID int64, key string) string {
	return fmt.Sprintf("%d/%s", orderID, key)
}

func (f *fakeOrderMeta) Get(_ context.Context, orderID int64, key string) (string, error) {
	return f.data[f.key(orderID, key)], nil
}

func (f *fakeOrderMeta) Set(_ context.Context, orderID int64, key, value string) error {
	f.data[f.key(orderID, key)] = value
	return nil
}

func (f *fakeOrderMeta) SetOnce(_ context.Context, orderID int64, key, value string) error {
	k := f.key(orderID, key)
	if _, ok := f.data[k]; !ok {
		f.data[k] = value
	}
	return nil
}

type fakeUserMeta struct {
	meta  map[string]string
	roles []string
}

func newFakeUserMeta() *fakeUserMeta { return &fakeUserMeta{meta: map[string]string{}} }

func (f *fakeUserMeta) GetString(_ context.Context, userID int64, key string) (string, error) {
	return f.meta[fmt.Sprintf("%d/%s", userID, key)], nil
}

func (f *fakeUserMeta) Roles(_ context.Context, _ int64) ([]string, error) {
	return f.roles, nil
}

// metaMap adapts a plain map to the membership durable backend.
type metaMap struct {
	data map[string][]byte
}

func newMetaMap() *metaMap { return &metaMap{data: map[string][]byte{}} }

func (m *metaMap) Get(_ context.Context, userID int64, key string) ([]byte, error) {
	return m.data[fmt.Sprintf("%d/%s", userID, key)], nil
}

func (m *metaMap) Set(_ context.Context, userID int64, key string, value []byte) error {
	m.data[fmt.Sprintf("%d/%s", userID, key)] = value
	return nil
}

type fixture struct {
	orch   *Orchestrator
	client *fakeListClient
	orders *fakeOrderMeta
	users  *fakeUserMeta
	store  *membership.Store
	cfg    *config.Config
}

func newFixture(cfg *config.Config) *fixture {
	client := &fakeListClient{}
	orders := newFakeOrderMeta()
	users := newFakeUserMeta()
	store := membership.NewStore(newMetaMap(), zerolog.Nop())
	return &fixture{
		orch:   NewOrchestrator(cfg, client, store, orders, users, zerolog.Nop()),
		client: client,
		orders: orders,
		users:  users,
		store:  store,
		cfg:    cfg,
	}
}

func baseConfig() *config.Config {
	return &config.Config{
		MailChimp: config.MailChimpConfig{
			Enabled:                 true,
			APIKey:                  "key-us6",
			AlreadySubscribedAction: "ignore",
		},
		Checkout: config.CheckoutConfig{
			Auto: config.AutoConfig{
				SubscribeOn: config.SubscribeOnCheckout,
				Sets: []config.Set{{
					List:   "L1",
					Groups: []string{"g1:News", "g2:Offers"},
				}},
			},
			Checkbox: config.CheckboxConfig{SubscribeOn: config.SubscribeDisabled},
		},
	}
}

func orderFor(email string) *domain.Order {
	return &domain.Order{
		ID:     42,
		UserID: 7,
		Status: "processing",
		Total:  99.50,
		Items:  []domain.OrderItem{{Key: "a", Name: "Shirt", ProductID: 10, Quantity: 1, LineTotal: 99.50}},
		Fields: map[string]string{"billing_email": email},
	}
}

func TestProcessOrderSubscribesOnce(t *testing.T) {
	f := newFixture(baseConfig())
	ctx := context.Background()
	order := orderFor("buyer@example.com")

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, order, ChannelAuto, nil))
	require.Len(t, f.client.calls, 1)
	assert.Equal(t, "POST", f.client.calls[0].method)
	assert.Equal(t, "L1", f.client.calls[0].listID)
	assert.Equal(t, "buyer@example.com", f.client.calls[0].params.EmailAddress)
	assert.Equal(t, map[string]bool{"g1": true, "g2": true}, f.client.calls[0].params.Interests,
		"auto subscription carries the full configured group set")

	// The second run observes the flag and does nothing.
	require.NoError(t, f.orch.ProcessOrder(ctx, nil, order, ChannelAuto, nil))
	assert.Len(t, f.client.calls, 1)
}

func TestProcessOrderTracksMembership(t *testing.T) {
	f := newFixture(baseConfig())
	ctx := context.Background()

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, orderFor("buyer@example.com"), ChannelAuto, nil))

	lists, err := f.store.ReadLists(ctx, membership.Subscribed, 7, nil)
	require.NoError(t, err)
	require.Contains(t, lists, "L1")
	assert.Equal(t, "buyer@example.com", lists["L1"].Email)
	assert.ElementsMatch(t, []string{"g1", "g2"}, lists["L1"].Groups)
}

func TestProcessOrderNoEmailIsNoop(t *testing.T) {
	f := newFixture(baseConfig())
	order := orderFor("")

	require.NoError(t, f.orch.ProcessOrder(context.Background(), nil, order, ChannelAuto, nil))
	assert.Empty(t, f.client.calls)
}

func TestProcessOrderMemberExistsStillSetsFlag(t *testing.T) {
	f := newFixture(baseConfig())
	f.client.err = &mailchimp.APIError{
		Status: 400,
		Title:  "Member Exists",
		Detail: "buyer@example.com is already a list member",
	}
	ctx := context.Background()
	order := orderFor("buyer@example.com")

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, order, ChannelAuto, nil))
	assert.Equal(t, "1", f.orders.data["42/_subscribed_auto"],
		"already-subscribed is a terminal outcome, not a retryable failure")
}

func TestProcessOrderFailureLeavesFlagUnset(t *testing.T) {
	f := newFixture(baseConfig())
	f.client.err = &mailchimp.APIError{Status: 500, Title: "Internal Error"}
	ctx := context.Background()
	order := orderFor("buyer@example.com")

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, order, ChannelAuto, nil))
	assert.NotContains(t, f.orders.data, "42/_subscribed_auto")

	// A later lifecycle event can retry.
	f.client.err = nil
	require.NoError(t, f.orch.ProcessOrder(ctx, nil, order, ChannelAuto, nil))
	assert.Equal(t, "1", f.orders.data["42/_subscribed_auto"])
}

func TestProcessOrderConditionGates(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.Sets[0].Condition = config.ConditionConfig{
		Key:      "products",
		Operator: "contains",
		Values:   []string{"999"},
	}
	f := newFixture(cfg)

	require.NoError(t, f.orch.ProcessOrder(context.Background(), nil, orderFor("buyer@example.com"), ChannelAuto, nil))
	assert.Empty(t, f.client.calls, "the order does not contain product 999")
}

func TestProcessOrderDoNotResubscribe(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.DoNotResubscribe = true
	f := newFixture(cfg)
	ctx := context.Background()

	require.NoError(t, f.store.Track(ctx, nil, membership.Unsubscribed, "L1", "buyer@example.com", nil, 7))

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, orderFor("buyer@example.com"), ChannelAuto, nil))
	assert.Empty(t, f.client.calls, "a recorded opt-out blocks automatic resubscription")
}

func TestProcessOrderCheckboxIntersectsGroups(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.SubscribeOn = config.SubscribeDisabled
	cfg.Checkout.Checkbox = config.CheckboxConfig{
		SubscribeOn: config.SubscribeOnCheckout,
		Sets: []config.Set{{
			List:   "L1",
			Groups: []string{"g1:News", "g2:Offers"},
		}},
	}
	f := newFixture(cfg)
	ctx := context.Background()

	// The customer picked g2 and something not configured for the set.
	f.orders.data["42/subscribe_groups"] = `["g2","g9"]`

	require.NoError(t, f.orch.ProcessOrder(ctx, nil, orderFor("buyer@example.com"), ChannelCheckbox, nil))
	require.Len(t, f.client.calls, 1)
	assert.Equal(t, map[string]bool{"g2": true}, f.client.calls[0].params.Interests)
}

func TestSubscribeUpdateActionUsesPut(t *testing.T) {
	cfg := baseConfig()
	cfg.MailChimp.AlreadySubscribedAction = "update"
	f := newFixture(cfg)

	outcome, err := f.orch.Subscribe(context.Background(), nil, "L1", "buyer@example.com", nil, nil, 7, "auto")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribed, outcome)
	require.Len(t, f.client.calls, 1)
	assert.Equal(t, "PUT", f.client.calls[0].method)
}

func TestSubscribeClearsOppositeRecord(t *testing.T) {
	f := newFixture(baseConfig())
	ctx := context.Background()

	require.NoError(t, f.store.Track(ctx, nil, membership.Unsubscribed, "L1", "buyer@example.com", nil, 7))

	_, err := f.orch.Subscribe(ctx, nil, "L1", "buyer@example.com", nil, nil, 7, "widget")
	require.NoError(t, err)

	unsubs, err := f.store.ReadLists(ctx, membership.Unsubscribed, 7, nil)
	require.NoError(t, err)
	assert.NotContains(t, unsubs, "L1")
}

func TestUnsubscribeAll(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Checkbox.Sets = []config.Set{{List: "L1"}, {List: "L2"}}
	f := newFixture(cfg)
	ctx := context.Background()

	require.NoError(t, f.store.Track(ctx, nil, membership.Subscribed, "L1", "buyer@example.com", nil, 7))

	require.NoError(t, f.orch.UnsubscribeAll(ctx, nil, orderFor("buyer@example.com"), ChannelCheckbox))
	assert.Equal(t, []string{"L1/buyer@example.com", "L2/buyer@example.com"}, f.client.deletes)

	subs, err := f.store.ReadLists(ctx, membership.Subscribed, 7, nil)
	require.NoError(t, err)
	assert.NotContains(t, subs, "L1")
	unsubs, err := f.store.ReadLists(ctx, membership.Unsubscribed, 7, nil)
	require.NoError(t, err)
	assert.Contains(t, unsubs, "L1")
}

func TestNewOrderDefersToCompletion(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.SubscribeOn = config.SubscribeOnCompleted
	f := newFixture(cfg)
	ctx := context.Background()
	order := orderFor("buyer@example.com")

	require.NoError(t, f.orch.NewOrder(ctx, nil, order, CheckoutData{}))
	assert.Empty(t, f.client.calls, "nothing fires at checkout")
	assert.Equal(t, "auto", f.orders.data["42/subscribe_on_completed"])
	assert.Equal(t, "1", f.orders.data["42/_new_order"])

	// Placing the order again is a no-op.
	require.NoError(t, f.orch.NewOrder(ctx, nil, order, CheckoutData{}))

	require.NoError(t, f.orch.OrderCompleted(ctx, nil, order, false))
	assert.Len(t, f.client.calls, 1)
}

func TestNewOrderDefersToPayment(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.SubscribeOn = config.SubscribeOnPayment
	f := newFixture(cfg)
	ctx := context.Background()
	order := orderFor("buyer@example.com")

	require.NoError(t, f.orch.NewOrder(ctx, nil, order, CheckoutData{}))
	assert.Equal(t, "auto", f.orders.data["42/subscribe_on_payment"])

	require.NoError(t, f.orch.OrderCompleted(ctx, nil, order, false))
	assert.Empty(t, f.client.calls, "the payment marker waits for an actual payment")

	require.NoError(t, f.orch.OrderCompleted(ctx, nil, order, true))
	assert.Len(t, f.client.calls, 1)
}

func TestNewOrderPersistsCampaignAndGroups(t *testing.T) {
	f := newFixture(baseConfig())
	ctx := context.Background()

	require.NoError(t, f.orch.NewOrder(ctx, nil, orderFor("buyer@example.com"), CheckoutData{
		CampaignID: "cid123",
		EmailID:    "eid456",
		Groups:     []string{"g1"},
	}))
	assert.Equal(t, "cid123", f.orders.data["42/_mc_cid"])
	assert.Equal(t, "eid456", f.orders.data["42/_mc_eid"])
	assert.Equal(t, `["g1"]`, f.orders.data["42/subscribe_groups"])
}

func TestNewOrderConsentWithdrawnUnsubscribes(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.SubscribeOn = config.SubscribeDisabled
	cfg.Checkout.Checkbox = config.CheckboxConfig{
		SubscribeOn: config.SubscribeOnCheckout,
		Sets:        []config.Set{{List: "L1"}},
	}
	f := newFixture(cfg)
	ctx := context.Background()

	require.NoError(t, f.store.Track(ctx, nil, membership.Subscribed, "L1", "buyer@example.com", nil, 7))

	require.NoError(t, f.orch.NewOrder(ctx, nil, orderFor("buyer@example.com"), CheckoutData{ConsentGiven: false}))
	assert.Equal(t, []string{"L1/buyer@example.com"}, f.client.deletes)
}

func TestNewOrderConsentWithdrawnNotSubscribedIsNoop(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Auto.SubscribeOn = config.SubscribeDisabled
	cfg.Checkout.Checkbox = config.CheckboxConfig{
		SubscribeOn: config.SubscribeOnCheckout,
		Sets:        []config.Set{{List: "L1"}},
	}
	f := newFixture(cfg)

	require.NoError(t, f.orch.NewOrder(context.Background(), nil, orderFor("buyer@example.com"), CheckoutData{}))
	assert.Empty(t, f.client.deletes, "never subscribed means nothing to undo")
}

func TestNewOrderDisabledIntegration(t *testing.T) {
	cfg := baseConfig()
	cfg.MailChimp.Enabled = false
	f := newFixture(cfg)

	require.NoError(t, f.orch.NewOrder(context.Background(), nil, orderFor("buyer@example.com"), CheckoutData{}))
	assert.Empty(t, f.client.calls)
	assert.Empty(t, f.orders.data)
}

func TestCanSubscribeWithCheckbox(t *testing.T) {
	cfg := baseConfig()
	cfg.Checkout.Checkbox.Sets = []config.Set{{List: "L1"}}
	f := newFixture(cfg)
	ctx := context.Background()
	cart := &domain.Cart{Items: []domain.OrderItem{{ProductID: 10}}, Total: 10}

	can, err := f.orch.CanSubscribeWithCheckbox(ctx, nil, cart, 7)
	require.NoError(t, err)
	assert.True(t, can)

	require.NoError(t, f.store.Track(ctx, nil, membership.Subscribed, "L1", "buyer@example.com", nil, 7))
	can, err = f.orch.CanSubscribeWithCheckbox(ctx, nil, cart, 7)
	require.NoError(t, err)
	assert.False(t, can, "already on every checkbox list")
}
