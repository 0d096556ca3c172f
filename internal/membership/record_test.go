package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieRoundTrip(t *testing.T) {
	rec := Record{Timestamp: 1700000000, Email: "a@example.com", Groups: []string{"g1", "g2"}}
	got := DecodeCookie(EncodeCookie(rec), 0)
	assert.Equal(t, rec, got)
}

func TestEncodeCookieNoGroups(t *testing.T) {
	rec := Record{Timestamp: 1700000000, Email: "a@example.com"}
	assert.Equal(t, "1700000000|a@example.com", EncodeCookie(rec))
}

func TestDecodeCookieLegacyValue(t *testing.T) {
	got := DecodeCookie("1", 1234)
	assert.Equal(t, Record{Timestamp: 1234}, got,
		"the pre-metadata cookie carries only presence and takes the default timestamp")
}

func TestDecodeCookieGarbageTimestamp(t *testing.T) {
	got := DecodeCookie("notanumber|a@example.com|g1", 99)
	assert.Equal(t, int64(99), got.Timestamp)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, []string{"g1"}, got.Groups)
}

func TestMetaRoundTrip(t *testing.T) {
	lists := map[string]Record{
		"L1": {Timestamp: 100, Email: "a@example.com", Groups: []string{"g1"}},
		"L2": {Timestamp: 200, Email: "a@example.com"},
	}
	raw, err := encodeMeta(lists)
	require.NoError(t, err)

	got, migrated, err := decodeMeta(raw, 0)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, lists, got)
}

func TestDecodeMetaLegacyFlatList(t *testing.T) {
	got, migrated, err := decodeMeta([]byte(`["L1","L2",""]`), 555)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, map[string]Record{
		"L1": {Timestamp: 555},
		"L2": {Timestamp: 555},
	}, got, "empty ids are dropped, migrated entries take the default timestamp")
}

func TestDecodeMetaUnversionedMap(t *testing.T) {
	raw := []byte(`{"L1":{"timestamp":100,"email":"a@example.com","groups":null}}`)
	got, migrated, err := decodeMeta(raw, 0)
	require.NoError(t, err)
	assert.True(t, migrated, "a structured blob without the version tag still counts as legacy")
	assert.Equal(t, int64(100), got["L1"].Timestamp)
}

func TestDecodeMetaEmpty(t *testing.T) {
	got, migrated, err := decodeMeta(nil, 0)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, got)
}

func TestDecodeMetaGarbage(t *testing.T) {
	_, _, err := decodeMeta([]byte(`{{{`), 0)
	assert.Error(t, err)
}

func TestCookieName(t *testing.T) {
	assert.Equal(t, "subscribed_list_L1", CookieName(Subscribed, "L1"))
	assert.Equal(t, "unsubscribed_list_L1", CookieName(Unsubscribed, "L1"))
}

func TestListTypeOpposite(t *testing.T) {
	assert.Equal(t, Unsubscribed, Subscribed.Opposite())
	assert.Equal(t, Subscribed, Unsubscribed.Opposite())
}
