package subscription

import (
	"context"
	"strconv"
	"strings"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/domain"
)

// ResolveFields materializes the configured merge-field mappings for one
// order. Sources that resolve to nothing are skipped rather than sent empty;
// the provider treats a present-but-empty merge field as a value.
func (o *Orchestrator) ResolveFields(ctx context.Context, mappings []config.FieldMapping, order *domain.Order, userID int64) map[string]string {
	fields := map[string]string{}
	for _, m := range mappings {
		if m.Tag == "" {
			continue
		}
		value := o.resolveField(ctx, m, order, userID)
		if value == "" {
			continue
		}
		fields[m.Tag] = value
	}
	return fields
}

func (o *Orchestrator) resolveField(ctx context.Context, m config.FieldMapping, order *domain.Order, userID int64) string {
	switch {
	case m.Name == "order_user_id":
		if userID == 0 {
			return ""
		}
		return strconv.FormatInt(userID, 10)

	case strings.HasPrefix(m.Name, "order_"):
		if order == nil {
			return ""
		}
		key := strings.TrimPrefix(m.Name, "order_")
		if strings.HasSuffix(key, "_country") || strings.HasSuffix(key, "_state") {
			return translateLocationCode(key, order.Field)
		}
		value, _ := order.Field(key)
		return value

	case strings.HasPrefix(m.Name, "user_"):
		if userID == 0 {
			return ""
		}
		value, err := o.users.GetString(ctx, userID, strings.TrimPrefix(m.Name, "user_"))
		if err != nil {
			o.log.Warn().Err(err).Str("field", m.Name).Msg("user field lookup failed")
			return ""
		}
		return value

	case m.Name == "custom_order_field":
		if order == nil || m.Value == "" {
			return ""
		}
		if v, ok := order.Meta[m.Value]; ok {
			return v
		}
		return order.CustomFields[m.Value]

	case m.Name == "custom_user_field":
		if userID == 0 || m.Value == "" {
			return ""
		}
		value, err := o.users.GetString(ctx, userID, m.Value)
		if err != nil {
			o.log.Warn().Err(err).Str("key", m.Value).Msg("custom user field lookup failed")
			return ""
		}
		return value

	case m.Name == "static_value":
		return m.Value
	}
	return ""
}

// groupIDs extracts interest ids from configured "id:name" group pairs.
func groupIDs(groups []string) []string {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		id, _, _ := strings.Cut(g, ":")
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// intersectGroups keeps the posted group selections that are actually
// configured for the set. Checkbox subscribers only ever get groups they
// picked themselves.
func intersectGroups(configured, posted []string) []string {
	allowed := make(map[string]bool, len(configured))
	for _, id := range groupIDs(configured) {
		allowed[id] = true
	}
	var out []string
	for _, id := range posted {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}
