package membership

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeta struct {
	data map[string][]byte
}

func newFakeMeta() *fakeMeta { return &fakeMeta{data: map[string][]byte{}} }

func (f *fakeMeta) key(userID int64, key string) string {
	return fmt.Sprintf("%d/%s", userID, key)
}

func (f *fakeMeta) Get(_ context.Context, userID int64, key string) ([]byte, error) {
	return f.data[f.key(userID, key)], nil
}

func (f *fakeMeta) Set(_ context.Context, userID int64, key string, value []byte) error {
	f.data[f.key(userID, key)] = value
	return nil
}

type fakeJar struct {
	cookies map[string]string
	expired map[string]bool
}

func newFakeJar() *fakeJar {
	return &fakeJar{cookies: map[string]string{}, expired: map[string]bool{}}
}

func (f *fakeJar) Get(name string) (string, bool) {
	v, ok := f.cookies[name]
	return v, ok
}

func (f *fakeJar) Set(name, value string, _ time.Duration) {
	delete(f.expired, name)
	f.cookies[name] = value
}

func (f *fakeJar) Expire(name string) {
	delete(f.cookies, name)
	f.expired[name] = true
}

func (f *fakeJar) Names() []string {
	names := make([]string, 0, len(f.cookies))
	for name := range f.cookies {
		names = append(names, name)
	}
	return names
}

func newTestStore(meta MetaStore) *Store {
	return NewStore(meta, zerolog.Nop())
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestTrackWritesBothBackends(t *testing.T) {
	meta := newFakeMeta()
	jar := newFakeJar()
	store := newTestStore(meta)
	store.SetClock(fixedClock(1700000000))

	err := store.Track(context.Background(), jar, Subscribed, "L1", "a@example.com", []string{"g1"}, 7)
	require.NoError(t, err)

	lists, err := store.ReadLists(context.Background(), Subscribed, 7, nil)
	require.NoError(t, err)
	require.Contains(t, lists, "L1")
	assert.Equal(t, "a@example.com", lists["L1"].Email)
	assert.Equal(t, []string{"g1"}, lists["L1"].Groups)

	value, ok := jar.Get("subscribed_list_L1")
	require.True(t, ok)
	assert.Equal(t, EncodeCookie(lists["L1"]), value)
}

func TestTrackBiasesSubscribeTimestamps(t *testing.T) {
	meta := newFakeMeta()
	store := newTestStore(meta)
	store.SetClock(fixedClock(1700000000))
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, nil, Subscribed, "L1", "a@example.com", nil, 7))
	require.NoError(t, store.Track(ctx, nil, Unsubscribed, "L1", "a@example.com", nil, 7))

	subs, err := store.ReadLists(ctx, Subscribed, 7, nil)
	require.NoError(t, err)
	unsubs, err := store.ReadLists(ctx, Unsubscribed, 7, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000-10), subs["L1"].Timestamp)
	assert.Equal(t, int64(1700000000), unsubs["L1"].Timestamp)
	assert.Greater(t, unsubs["L1"].Timestamp, subs["L1"].Timestamp,
		"an unsubscribe in the same second must win reconciliation")
}

func TestTrackRejectsIncompleteRecords(t *testing.T) {
	store := newTestStore(newFakeMeta())
	err := store.Track(context.Background(), nil, Subscribed, "", "a@example.com", nil, 7)
	assert.ErrorIs(t, err, ErrIncompleteRecord)

	err = store.Track(context.Background(), nil, Subscribed, "L1", "", nil, 7)
	assert.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestTrackUnionMergesExistingLists(t *testing.T) {
	store := newTestStore(newFakeMeta())
	store.SetClock(fixedClock(1700000000))
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, nil, Subscribed, "L1", "a@example.com", nil, 7))
	require.NoError(t, store.Track(ctx, nil, Subscribed, "L2", "a@example.com", []string{"g1"}, 7))

	lists, err := store.ReadLists(ctx, Subscribed, 7, nil)
	require.NoError(t, err)
	assert.Len(t, lists, 2, "tracking a second list must not forget the first")
}

func TestTrackAnonymousUsesCookiesOnly(t *testing.T) {
	meta := newFakeMeta()
	jar := newFakeJar()
	store := newTestStore(meta)

	require.NoError(t, store.Track(context.Background(), jar, Subscribed, "L1", "a@example.com", nil, 0))

	assert.Empty(t, meta.data, "no durable writes for anonymous visitors")
	_, ok := jar.Get("subscribed_list_L1")
	assert.True(t, ok)
}

func TestReadListsPicksBackendByIdentity(t *testing.T) {
	meta := newFakeMeta()
	jar := newFakeJar()
	store := newTestStore(meta)
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, nil, Subscribed, "Lmeta", "a@example.com", nil, 7))
	jar.Set(CookieName(Subscribed, "Lcookie"), EncodeCookie(Record{Timestamp: 50, Email: "a@example.com"}), CookieTTL)

	asUser, err := store.ReadLists(ctx, Subscribed, 7, jar)
	require.NoError(t, err)
	assert.Contains(t, asUser, "Lmeta")
	assert.NotContains(t, asUser, "Lcookie", "known users read the durable backend")

	asVisitor, err := store.ReadLists(ctx, Subscribed, 0, jar)
	require.NoError(t, err)
	assert.Contains(t, asVisitor, "Lcookie")
	assert.NotContains(t, asVisitor, "Lmeta", "anonymous visitors read cookies")
}

func TestReadListsDecodesLegacyCookie(t *testing.T) {
	jar := newFakeJar()
	jar.Set(CookieName(Subscribed, "L1"), "1", CookieTTL)
	store := newTestStore(newFakeMeta())

	lists, err := store.ReadLists(context.Background(), Subscribed, 0, jar)
	require.NoError(t, err)
	require.Contains(t, lists, "L1")
	assert.Equal(t, int64(0), lists["L1"].Timestamp)
}

func TestRemoveList(t *testing.T) {
	meta := newFakeMeta()
	jar := newFakeJar()
	store := newTestStore(meta)
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, jar, Subscribed, "L1", "a@example.com", nil, 7))
	require.NoError(t, store.RemoveList(ctx, jar, Subscribed, "L1", 7))

	lists, err := store.ReadLists(ctx, Subscribed, 7, nil)
	require.NoError(t, err)
	assert.NotContains(t, lists, "L1")
	_, ok := jar.Get("subscribed_list_L1")
	assert.False(t, ok)
	assert.True(t, jar.expired["subscribed_list_L1"])
}

func TestMigrateMetaUpgradesLegacyBlob(t *testing.T) {
	meta := newFakeMeta()
	store := newTestStore(meta)
	ctx := context.Background()

	require.NoError(t, meta.Set(ctx, 7, Subscribed.MetaKey(), []byte(`["L1","L2"]`)))
	require.NoError(t, store.MigrateMeta(ctx, 7, Subscribed, 444))

	raw, err := meta.Get(ctx, 7, Subscribed.MetaKey())
	require.NoError(t, err)
	lists, migrated, err := decodeMeta(raw, 0)
	require.NoError(t, err)
	assert.False(t, migrated, "the persisted blob is now in the current format")
	assert.Equal(t, int64(444), lists["L1"].Timestamp)
	assert.Equal(t, int64(444), lists["L2"].Timestamp)
}

func TestMigrateMetaNoopOnCurrentFormat(t *testing.T) {
	meta := newFakeMeta()
	store := newTestStore(meta)
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, nil, Subscribed, "L1", "a@example.com", nil, 7))
	before := string(meta.data["7/subscribed_lists"])

	require.NoError(t, store.MigrateMeta(ctx, 7, Subscribed, 444))
	assert.Equal(t, before, string(meta.data["7/subscribed_lists"]))
}
