package membership

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ListType is the membership namespace a record lives in.
type ListType string

const (
	Subscribed   ListType = "subscribed"
	Unsubscribed ListType = "unsubscribed"
)

// Opposite returns the other namespace.
func (t ListType) Opposite() ListType {
	if t == Subscribed {
		return Unsubscribed
	}
	return Subscribed
}

// MetaKey is the durable-storage key for this namespace.
func (t ListType) MetaKey() string { return string(t) + "_lists" }

// CookieName is the per-list cookie name for this namespace.
func CookieName(t ListType, listID string) string {
	return string(t) + "_list_" + listID
}

// cookiePrefix matches the cookies belonging to a namespace.
func cookiePrefix(t ListType) string { return string(t) + "_list_" }

// Record tracks one list membership for one identity.
type Record struct {
	Timestamp int64    `json:"timestamp"`
	Email     string   `json:"email"`
	Groups    []string `json:"groups"`
}

// metaFormatVersion tags the current durable layout. Version 0 blobs are the
// legacy flat list of bare list ids with no per-list metadata.
const metaFormatVersion = 2

type metaBlob struct {
	Version int               `json:"version"`
	Lists   map[string]Record `json:"lists"`
}

// encodeMeta serializes a list map in the current durable format.
func encodeMeta(lists map[string]Record) ([]byte, error) {
	if lists == nil {
		lists = map[string]Record{}
	}
	return json.Marshal(metaBlob{Version: metaFormatVersion, Lists: lists})
}

// decodeMeta reads a durable blob in any historical format. Legacy flat
// entries (a bare id with no metadata) are migrated in place, taking
// defaultTimestamp. The second return value reports whether migration
// happened, so callers can decide to persist the upgraded form.
func decodeMeta(raw []byte, defaultTimestamp int64) (map[string]Record, bool, error) {
	if len(raw) == 0 {
		return map[string]Record{}, false, nil
	}

	var blob metaBlob
	if err := json.Unmarshal(raw, &blob); err == nil && blob.Version >= metaFormatVersion {
		if blob.Lists == nil {
			blob.Lists = map[string]Record{}
		}
		return blob.Lists, false, nil
	}

	// Legacy flat format: ["L1", "L2"].
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		lists := make(map[string]Record, len(flat))
		for _, listID := range flat {
			if listID == "" {
				continue
			}
			lists[listID] = Record{Timestamp: defaultTimestamp}
		}
		return lists, true, nil
	}

	// Unversioned structured format: {"L1": {...}}.
	var lists map[string]Record
	if err := json.Unmarshal(raw, &lists); err == nil {
		return lists, true, nil
	}

	return nil, false, fmt.Errorf("unrecognized membership meta format: %s", truncate(raw, 64))
}

// legacyCookieValue is the pre-metadata cookie format: presence only.
const legacyCookieValue = "1"

// EncodeCookie renders a record in the cookie wire format
// "timestamp|email|group1|group2|...".
func EncodeCookie(r Record) string {
	parts := append([]string{strconv.FormatInt(r.Timestamp, 10), r.Email}, r.Groups...)
	return strings.Join(parts, "|")
}

// DecodeCookie parses a cookie value in either format. Legacy values carry
// no metadata and take defaultTimestamp.
func DecodeCookie(value string, defaultTimestamp int64) Record {
	if value == "" || value == legacyCookieValue {
		return Record{Timestamp: defaultTimestamp}
	}

	parts := strings.Split(value, "|")
	rec := Record{Timestamp: defaultTimestamp}
	if ts, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
		rec.Timestamp = ts
	}
	if len(parts) > 1 {
		rec.Email = parts[1]
	}
	for _, group := range parts[2:] {
		if group != "" {
			rec.Groups = append(rec.Groups, group)
		}
	}
	return rec
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
