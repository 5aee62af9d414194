// Package compliance implements the deterministic rule evaluation and risk
// scoring core: field resolution from coverage snapshots, condition
// evaluation, rule partitioning, and score/tier aggregation.
package compliance

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Snapshot is a vendor's flattened coverage field map. It is read-only input
// to evaluation and is never mutated by the engine.
type Snapshot map[string]any

// SnapshotFromJSON decodes a stored coverage snapshot payload.
func SnapshotFromJSON(raw datatypes.JSON) (Snapshot, error) {
	if len(raw) == 0 {
		return Snapshot{}, nil
	}
	var fields map[string]any
	if errDecode := json.Unmarshal(raw, &fields); errDecode != nil {
		return nil, errDecode
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return Snapshot(fields), nil
}

// dateLayouts are the accepted stored formats for date fields, most common first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ResolveNumber resolves a numeric limit field. Malformed, non-numeric, or
// negative stored values resolve to absent, never to zero.
func (s Snapshot) ResolveNumber(field string) (float64, bool) {
	raw, ok := s[field]
	if !ok || raw == nil {
		return 0, false
	}
	value, errParse := toNumber(raw)
	if errParse != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// ResolveDate resolves a date field. Unparsable or missing dates resolve to absent.
func (s Snapshot) ResolveDate(field string) (time.Time, bool) {
	raw, ok := s[field]
	if !ok || raw == nil {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		return ParseDate(v)
	default:
		return time.Time{}, false
	}
}

// ResolveList resolves an endorsement list field to a set of normalized
// strings. An absent list resolves to an empty set, not absent; the
// empty/absent distinction is carried by the set being empty, which the
// condition evaluator maps to "missing" for requires.
func (s Snapshot) ResolveList(field string) []string {
	raw, ok := s[field]
	if !ok || raw == nil {
		return []string{}
	}
	var items []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if str, okStr := item.(string); okStr {
				items = append(items, str)
			}
		}
	case []string:
		items = v
	case string:
		items = strings.Split(v, ",")
	default:
		return []string{}
	}

	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		normalized := NormalizeListEntry(item)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// ResolvePresence resolves a coverage presence field. It reports whether the
// field carries a non-empty value; false booleans, empty strings, and nils
// all count as absent.
func (s Snapshot) ResolvePresence(field string) bool {
	raw, ok := s[field]
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		// Numeric values count as present, including zero.
		if _, errParse := toNumber(raw); errParse == nil {
			return true
		}
		return false
	}
}

// NormalizeListEntry trims whitespace and lowercases an endorsement name so
// membership checks are insensitive to case and padding.
func NormalizeListEntry(entry string) string {
	return strings.ToLower(strings.TrimSpace(entry))
}

// ParseDate parses a date string in any accepted stored format.
func ParseDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, errParse := time.Parse(layout, trimmed); errParse == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// toNumber coerces snapshot values into a float64. String values tolerate
// currency formatting ("$1,000,000") produced by document extraction.
func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		cleaned = strings.TrimSpace(cleaned)
		return strconv.ParseFloat(cleaned, 64)
	default:
		return 0, strconv.ErrSyntax
	}
}
