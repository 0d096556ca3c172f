package membership

import "context"

// backend names the two storage locations a view can come from.
type backend int

const (
	backendMeta backend = iota
	backendCookies
)

func (b backend) opposite() backend {
	if b == backendMeta {
		return backendCookies
	}
	return backendMeta
}

// Reconcile merges the durable and cookie views of a user's membership into
// one canonical state and writes it back to both backends.
//
// For each namespace the two views are unioned, newest record per list id
// winning. A list also present in the opposite namespace is dropped from the
// current one when the opposing record's timestamp is strictly greater; the
// same-backend opposing record is consulted first and shadows the
// cross-backend one. Cookies for dropped lists are expired. Running
// reconciliation again without intervening writes is a no-op.
func (s *Store) Reconcile(ctx context.Context, userID int64, jar CookieJar) error {
	// Anonymous visitors have a single backend; nothing to merge.
	if userID == 0 {
		return nil
	}

	views := map[ListType]map[backend]map[string]Record{}
	for _, typ := range []ListType{Subscribed, Unsubscribed} {
		metaView, err := s.readMeta(ctx, userID, typ)
		if err != nil {
			return err
		}
		views[typ] = map[backend]map[string]Record{
			backendMeta:    metaView,
			backendCookies: s.readCookies(jar, typ),
		}
	}

	for _, typ := range []ListType{Subscribed, Unsubscribed} {
		merged := map[string]Record{}

		for _, src := range []backend{backendMeta, backendCookies} {
			for listID, rec := range views[typ][src] {
				if existing, ok := merged[listID]; ok {
					if rec.Timestamp > existing.Timestamp {
						merged[listID] = rec
					}
				} else {
					merged[listID] = rec
				}

				// A newer record of the opposite type supersedes
				// this one entirely.
				if opposing, ok := views[typ.Opposite()][src][listID]; ok {
					if opposing.Timestamp > merged[listID].Timestamp {
						delete(merged, listID)
					}
				} else if opposing, ok := views[typ.Opposite()][src.opposite()][listID]; ok {
					if opposing.Timestamp > merged[listID].Timestamp {
						delete(merged, listID)
					}
				}
			}
		}

		if err := s.writeMeta(ctx, userID, typ, merged); err != nil {
			return err
		}

		if jar != nil {
			for listID := range views[typ][backendCookies] {
				if _, ok := merged[listID]; !ok {
					jar.Expire(CookieName(typ, listID))
				}
			}
			for listID, rec := range merged {
				jar.Set(CookieName(typ, listID), EncodeCookie(rec), CookieTTL)
			}
		}
	}

	return nil
}
