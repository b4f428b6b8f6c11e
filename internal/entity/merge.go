package entity

import (
	"strings"
)

// Merge combines a draft document into an entity's existing multi-source
// document. Pure, deterministic, and idempotent:
// Merge(A, Merge(A, nil)) == Merge(A, nil).
//
// Per-field policy:
//   - name/description/address: keep the longer non-empty string
//   - years_in_business/employee_count and media totals: keep the max
//   - payment_methods/social_links/awards/services/gallery_links: de-duplicated union
//   - license/contact sub-objects: field-by-field, existing wins unless empty
//   - reviews: items de-duplicated by (reviewer, date, platform); aggregates
//     adopted from the new side only when its total_reviews is strictly larger
//   - unrecognized top-level keys pass through when absent on the existing side
func Merge(newData, existing map[string]any) map[string]any {
	out := cloneMap(existing)
	if out == nil {
		out = map[string]any{}
	}
	if newData == nil {
		return out
	}

	for key, nv := range newData {
		ev, present := out[key]
		switch key {
		case "business_info":
			out[key] = mergeBusinessInfo(asMap(nv), asMap(ev))
		case "services":
			out[key] = mergeServices(asMap(nv), asMap(ev))
		case "reviews":
			out[key] = mergeReviews(asMap(nv), asMap(ev))
		case "customer_interaction":
			out[key] = mergeKeepExisting(asMap(nv), asMap(ev))
		case "media":
			out[key] = mergeMedia(asMap(nv), asMap(ev))
		default:
			// Unrecognized keys pass through only when the existing side
			// has nothing for them.
			if !present {
				out[key] = nv
			}
		}
	}
	return out
}

func mergeBusinessInfo(nv, ev map[string]any) map[string]any {
	out := cloneMap(ev)
	if out == nil {
		out = map[string]any{}
	}
	for key, val := range nv {
		switch key {
		case "name", "description", "address":
			out[key] = preferRicher(asString(val), asString(out[key]))
		case "years_in_business", "employee_count":
			out[key] = maxFloat(asFloat(val), asFloat(out[key]))
		case "payment_methods", "social_links", "awards", "service_areas":
			out[key] = unionList(asList(out[key]), asList(val))
		case "license":
			out[key] = mergeKeepExisting(asMap(val), asMap(out[key]))
		case "phone", "website":
			// Contact info: existing wins unless empty.
			if asString(out[key]) == "" {
				out[key] = val
			}
		default:
			if _, present := out[key]; !present {
				out[key] = val
			}
		}
	}
	return out
}

func mergeServices(nv, ev map[string]any) map[string]any {
	out := cloneMap(ev)
	if out == nil {
		out = map[string]any{}
	}
	for key, val := range nv {
		switch key {
		case "offered", "specialties":
			out[key] = unionList(asList(out[key]), asList(val))
		default:
			if _, present := out[key]; !present {
				out[key] = val
			}
		}
	}
	return out
}

func mergeReviews(nv, ev map[string]any) map[string]any {
	out := cloneMap(ev)
	if out == nil {
		out = map[string]any{}
	}

	// A strictly larger reported review count marks the new source as more
	// authoritative for the aggregates.
	newTotal := asFloat(nv["total_reviews"])
	existingTotal := asFloat(out["total_reviews"])
	if newTotal > existingTotal {
		out["total_reviews"] = nv["total_reviews"]
		if v, present := nv["rating"]; present {
			out["rating"] = v
		}
		if v, present := nv["distribution"]; present {
			out["distribution"] = v
		}
	} else if _, present := out["total_reviews"]; !present && newTotal > 0 {
		out["total_reviews"] = nv["total_reviews"]
		if v, present := nv["rating"]; present {
			out["rating"] = v
		}
		if v, present := nv["distribution"]; present {
			out["distribution"] = v
		}
	}

	out["items"] = unionReviews(asList(out["items"]), asList(nv["items"]))
	if lst, ok := out["items"].([]any); ok && len(lst) == 0 {
		delete(out, "items")
	}
	return out
}

func mergeMedia(nv, ev map[string]any) map[string]any {
	out := cloneMap(ev)
	if out == nil {
		out = map[string]any{}
	}
	for key, val := range nv {
		switch key {
		case "photo_count", "video_count":
			out[key] = maxFloat(asFloat(val), asFloat(out[key]))
		case "gallery_links":
			out[key] = unionList(asList(out[key]), asList(val))
		default:
			if _, present := out[key]; !present {
				out[key] = val
			}
		}
	}
	return out
}

// mergeKeepExisting merges a structured sub-object field-by-field: the
// existing value wins unless it is empty and the new one is not.
func mergeKeepExisting(nv, ev map[string]any) map[string]any {
	out := cloneMap(ev)
	if out == nil {
		out = map[string]any{}
	}
	for key, val := range nv {
		if isEmptyValue(out[key]) && !isEmptyValue(val) {
			out[key] = val
		}
	}
	return out
}

// unionReviews de-duplicates review items by the (reviewer, date, platform)
// composite key, existing items first.
func unionReviews(existing, add []any) []any {
	seen := make(map[string]bool, len(existing))
	out := make([]any, 0, len(existing)+len(add))
	for _, item := range existing {
		out = append(out, item)
		seen[reviewKey(asMap(item))] = true
	}
	for _, item := range add {
		k := reviewKey(asMap(item))
		if !seen[k] {
			seen[k] = true
			out = append(out, item)
		}
	}
	return out
}

func reviewKey(m map[string]any) string {
	return strings.ToLower(asString(m["reviewer"])) + "|" +
		asString(m["date"]) + "|" +
		strings.ToLower(asString(m["platform"]))
}

// unionList de-duplicates scalar list entries, existing first. String
// entries compare case-insensitively.
func unionList(existing, add []any) []any {
	seen := make(map[string]bool, len(existing))
	out := make([]any, 0, len(existing)+len(add))
	for _, v := range existing {
		out = append(out, v)
		seen[listKey(v)] = true
	}
	for _, v := range add {
		k := listKey(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func listKey(v any) string {
	if s, ok := v.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return asString(v)
}

func preferRicher(newVal, existingVal string) string {
	if len(newVal) > len(existingVal) {
		return newVal
	}
	return existingVal
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
