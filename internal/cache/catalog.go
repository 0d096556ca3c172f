// Package cache keeps short-lived Redis copies of the provider's list and
// group catalogs, which admin and checkout surfaces read far more often than
// they change.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ignite/listbridge/internal/mailchimp"
)

// DefaultTTL bounds catalog staleness. Group edits on the provider side show
// up within this window.
const DefaultTTL = 180 * time.Second

const keyPrefix = "listbridge:catalog:"

// Source is the provider surface the catalog reads through.
type Source interface {
	GetLists(ctx context.Context) (*mailchimp.ListsResponse, error)
	GetInterestCategories(ctx context.Context, listID string) (*mailchimp.InterestCategoriesResponse, error)
	GetInterests(ctx context.Context, listID, categoryID string) (*mailchimp.InterestsResponse, error)
}

// Group is one selectable interest, flattened with its category title.
type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Value returns the "id:name" pair format the configuration stores groups in.
func (g Group) Value() string { return g.ID + ":" + g.Name }

// Label returns the display label used in selection menus.
func (g Group) Label() string { return g.Category + ": " + g.Name }

// Catalog is a read-through cache over the provider's catalog endpoints.
type Catalog struct {
	rdb    *redis.Client
	source Source
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCatalog creates a catalog cache with the default TTL.
func NewCatalog(rdb *redis.Client, source Source, log zerolog.Logger) *Catalog {
	return &Catalog{
		rdb:    rdb,
		source: source,
		ttl:    DefaultTTL,
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

// SetTTL overrides the cache TTL (useful for testing).
func (c *Catalog) SetTTL(ttl time.Duration) { c.ttl = ttl }

// Lists returns the account's mailing lists.
func (c *Catalog) Lists(ctx context.Context) ([]mailchimp.List, error) {
	var lists []mailchimp.List
	err := c.readThrough(ctx, keyPrefix+"lists", &lists, func() (interface{}, error) {
		resp, err := c.source.GetLists(ctx)
		if err != nil {
			return nil, err
		}
		return resp.Lists, nil
	})
	return lists, err
}

// Groups returns all interests of a list, flattened across categories in
// category order.
func (c *Catalog) Groups(ctx context.Context, listID string) ([]Group, error) {
	var groups []Group
	err := c.readThrough(ctx, keyPrefix+"groups:"+listID, &groups, func() (interface{}, error) {
		return c.fetchGroups(ctx, listID)
	})
	return groups, err
}

func (c *Catalog) fetchGroups(ctx context.Context, listID string) ([]Group, error) {
	categories, err := c.source.GetInterestCategories(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("fetch interest categories: %w", err)
	}

	var groups []Group
	for _, cat := range categories.Categories {
		interests, err := c.source.GetInterests(ctx, listID, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch interests for category %s: %w", cat.ID, err)
		}
		for _, interest := range interests.Interests {
			groups = append(groups, Group{
				ID:       interest.ID,
				Name:     interest.Name,
				Category: cat.Title,
			})
		}
	}
	return groups, nil
}

// readThrough loads key into out, filling the cache from fetch on a miss.
// Redis failures degrade to a direct fetch; a dead cache must not take the
// catalog down with it.
func (c *Catalog) readThrough(ctx context.Context, key string, out interface{}, fetch func() (interface{}, error)) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(raw, out); err == nil {
			return nil
		}
		c.log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		_ = c.rdb.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode catalog entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return json.Unmarshal(encoded, out)
}

// Invalidate drops the cached groups of a list, forcing the next read to
// refetch.
func (c *Catalog) Invalidate(ctx context.Context, listID string) error {
	return c.rdb.Del(ctx, keyPrefix+"groups:"+listID).Err()
}
