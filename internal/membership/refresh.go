package membership

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// groupsRequestedKey marks users whose remote group membership has been
// fetched at least once. The marker is what a later request observes to
// decide between requesting a refresh and reconciling local state.
const groupsRequestedKey = "user_groups_requested"

// refreshRequestTimeout bounds the fire-and-forget loopback call. The
// request is not awaited; the handler does the expensive work off the
// interactive path.
const refreshRequestTimeout = 10 * time.Millisecond

// MemberSource fetches a member's current interest ids from the remote list
// provider.
type MemberSource interface {
	MemberInterests(ctx context.Context, listID, email string) (map[string]bool, error)
}

// UserReader resolves a user's billing email address.
type UserReader interface {
	Email(ctx context.Context, userID int64) (string, error)
}

// Refresher keeps durable group membership in step with the remote provider
// without blocking interactive requests.
type Refresher struct {
	store   *Store
	members MemberSource
	users   UserReader

	// loopbackURL is this service's own base URL, target of the deferred
	// refresh request.
	loopbackURL string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewRefresher creates a refresher that defers remote reads through
// loopbackURL.
func NewRefresher(store *Store, members MemberSource, users UserReader, loopbackURL string, log zerolog.Logger) *Refresher {
	return &Refresher{
		store:       store,
		members:     members,
		users:       users,
		loopbackURL: loopbackURL,
		httpClient:  &http.Client{Timeout: refreshRequestTimeout},
		log:         log.With().Str("component", "refresher").Logger(),
	}
}

// RequestRefresh fires the loopback request for a user and returns
// immediately. Errors (including the expected timeout) are discarded; the
// refresh completes on the handler side and is observed via the persisted
// marker on a later request.
func (r *Refresher) RequestRefresh(userID int64) {
	target := r.loopbackURL + "/groups/refresh?user=" + url.QueryEscape(strconv.FormatInt(userID, 10))
	go func() {
		resp, err := r.httpClient.Post(target, "application/json", nil)
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
}

// Refresh pulls current group membership from the provider for every list
// the user is subscribed to and rewrites both backends, then sets the
// fetched marker.
func (r *Refresher) Refresh(ctx context.Context, userID int64, jar CookieJar) error {
	if userID == 0 {
		return fmt.Errorf("refresh requires a user id")
	}

	subscribed, err := r.store.readMeta(ctx, userID, Subscribed)
	if err != nil {
		return err
	}

	email, err := r.users.Email(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve email for user %d: %w", userID, err)
	}

	for listID := range subscribed {
		interests, err := r.members.MemberInterests(ctx, listID, email)
		if err != nil {
			return fmt.Errorf("fetch interests for list %s: %w", listID, err)
		}

		groups := make([]string, 0, len(interests))
		for id := range interests {
			groups = append(groups, id)
		}
		sort.Strings(groups)

		rec := Record{Timestamp: r.store.now().Unix(), Email: email, Groups: groups}
		if err := r.store.unionWrite(ctx, userID, Subscribed, listID, rec); err != nil {
			return err
		}
		if jar != nil {
			jar.Set(CookieName(Subscribed, listID), EncodeCookie(rec), CookieTTL)
		}
	}

	if err := r.store.meta.Set(ctx, userID, groupsRequestedKey, []byte("1")); err != nil {
		return fmt.Errorf("mark groups requested for user %d: %w", userID, err)
	}
	return nil
}

// PageSync runs the per-page-load maintenance for a logged-in user: migrate
// any legacy durable layout, then either request the one-time remote group
// refresh or reconcile the two local backends.
func (r *Refresher) PageSync(ctx context.Context, userID int64, jar CookieJar) error {
	if userID == 0 {
		return nil
	}

	now := r.store.now().Unix()
	if err := r.store.MigrateMeta(ctx, userID, Subscribed, now-20); err != nil {
		return err
	}
	if err := r.store.MigrateMeta(ctx, userID, Unsubscribed, now-10); err != nil {
		return err
	}

	requested, err := r.store.meta.Get(ctx, userID, groupsRequestedKey)
	if err != nil {
		return fmt.Errorf("read groups-requested marker for user %d: %w", userID, err)
	}
	if len(requested) == 0 {
		r.RequestRefresh(userID)
		return nil
	}

	return r.store.Reconcile(ctx, userID, jar)
}
