package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CookieTTL is the lifetime of membership cookies (one Julian year).
const CookieTTL = 31557600 * time.Second

// subscribeBias is subtracted from subscribed-record timestamps at write
// time so that an unsubscribe recorded in the same second wins
// reconciliation. Opting out is the safe side of the tie.
const subscribeBias = int64(10)

// ErrIncompleteRecord is returned when a track call lacks a list id or email.
var ErrIncompleteRecord = errors.New("membership: list id and email are required")

// MetaStore is the durable per-user backend. Get returns nil with no error
// for an absent key.
type MetaStore interface {
	Get(ctx context.Context, userID int64, key string) ([]byte, error)
	Set(ctx context.Context, userID int64, key string, value []byte) error
}

// CookieJar is the browser-scoped backend, bound to one request/response
// pair by the HTTP layer.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(name, value string, ttl time.Duration)
	Expire(name string)
	Names() []string
}

// Store tracks list membership across the durable and cookie backends.
type Store struct {
	meta MetaStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewStore creates a membership store over the given durable backend.
func NewStore(meta MetaStore, log zerolog.Logger) *Store {
	return &Store{
		meta: meta,
		log:  log.With().Str("component", "membership").Logger(),
		now:  time.Now,
	}
}

// SetClock overrides the time source (useful for testing).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// ReadLists returns the membership view for one identity: the durable view
// for a known user, the cookie view for an anonymous visitor.
func (s *Store) ReadLists(ctx context.Context, typ ListType, userID int64, jar CookieJar) (map[string]Record, error) {
	if userID > 0 {
		return s.readMeta(ctx, userID, typ)
	}
	return s.readCookies(jar, typ), nil
}

func (s *Store) readMeta(ctx context.Context, userID int64, typ ListType) (map[string]Record, error) {
	raw, err := s.meta.Get(ctx, userID, typ.MetaKey())
	if err != nil {
		return nil, fmt.Errorf("read %s meta for user %d: %w", typ, userID, err)
	}
	lists, _, err := decodeMeta(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("decode %s meta for user %d: %w", typ, userID, err)
	}
	return lists, nil
}

func (s *Store) readCookies(jar CookieJar, typ ListType) map[string]Record {
	lists := map[string]Record{}
	if jar == nil {
		return lists
	}
	prefix := cookiePrefix(typ)
	for _, name := range jar.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		listID := strings.TrimPrefix(name, prefix)
		if value, ok := jar.Get(name); ok {
			lists[listID] = DecodeCookie(value, 0)
		}
	}
	return lists
}

// Track records a membership change in both backends. Subscribed timestamps
// are biased earlier so unsubscribes win equal-second conflicts. The durable
// write union-merges with existing records; nothing is forgotten without an
// explicit RemoveList.
func (s *Store) Track(ctx context.Context, jar CookieJar, typ ListType, listID, email string, groups []string, userID int64) error {
	if listID == "" || email == "" {
		return ErrIncompleteRecord
	}

	timestamp := s.now().Unix()
	if typ == Subscribed {
		timestamp -= subscribeBias
	}

	if userID > 0 {
		if err := s.MigrateMeta(ctx, userID, typ, timestamp); err != nil {
			return err
		}
	}

	rec := Record{Timestamp: timestamp, Email: email, Groups: groups}

	if userID > 0 {
		if err := s.unionWrite(ctx, userID, typ, listID, rec); err != nil {
			return err
		}
	}

	if jar != nil {
		jar.Set(CookieName(typ, listID), EncodeCookie(rec), CookieTTL)
	}
	return nil
}

// unionWrite merges one record into the stored map, preserving everything
// already there.
func (s *Store) unionWrite(ctx context.Context, userID int64, typ ListType, listID string, rec Record) error {
	existing, err := s.readMeta(ctx, userID, typ)
	if err != nil {
		return err
	}
	existing[listID] = rec
	return s.writeMeta(ctx, userID, typ, existing)
}

// writeMeta replaces the stored map wholesale. Reconciliation and the remote
// refresh use this; incremental tracking goes through unionWrite.
func (s *Store) writeMeta(ctx context.Context, userID int64, typ ListType, lists map[string]Record) error {
	raw, err := encodeMeta(lists)
	if err != nil {
		return fmt.Errorf("encode %s meta for user %d: %w", typ, userID, err)
	}
	if err := s.meta.Set(ctx, userID, typ.MetaKey(), raw); err != nil {
		return fmt.Errorf("write %s meta for user %d: %w", typ, userID, err)
	}
	return nil
}

// RemoveList drops a list from both backends if present.
func (s *Store) RemoveList(ctx context.Context, jar CookieJar, typ ListType, listID string, userID int64) error {
	if userID > 0 {
		lists, err := s.readMeta(ctx, userID, typ)
		if err != nil {
			return err
		}
		if _, ok := lists[listID]; ok {
			delete(lists, listID)
			if err := s.writeMeta(ctx, userID, typ, lists); err != nil {
				return err
			}
		}
	}

	if jar != nil {
		name := CookieName(typ, listID)
		if _, ok := jar.Get(name); ok {
			jar.Expire(name)
		}
	}
	return nil
}

// MigrateMeta rewrites a user's durable blob in the current format when a
// legacy layout is detected, assigning defaultTimestamp to migrated entries.
func (s *Store) MigrateMeta(ctx context.Context, userID int64, typ ListType, defaultTimestamp int64) error {
	raw, err := s.meta.Get(ctx, userID, typ.MetaKey())
	if err != nil {
		return fmt.Errorf("read %s meta for user %d: %w", typ, userID, err)
	}
	if len(raw) == 0 {
		return nil
	}
	lists, migrated, err := decodeMeta(raw, defaultTimestamp)
	if err != nil {
		return fmt.Errorf("decode %s meta for user %d: %w", typ, userID, err)
	}
	if !migrated {
		return nil
	}
	s.log.Info().Int64("user_id", userID).Str("type", string(typ)).Msg("migrated legacy membership meta")
	return s.writeMeta(ctx, userID, typ, lists)
}
