package document

import (
	"fmt"
	"strconv"
	"time"
)

// Flatten converts arbitrarily nested metadata into a flat string map.
//
// Rules:
//   - nil, empty maps/slices and other falsy input yield an empty map
//   - maps recurse with "{parent}_{key}" compound keys
//   - slices recurse with "{parent}_{index}" compound keys
//   - a map shaped like a date range ({start, end}) flattens to
//     "{key}_start" / "{key}_end" instead of recursing
//   - scalars are assigned under the parent key; a bare scalar with no
//     parent key produces no output
//
// Flatten is total: it never fails, whatever the input shape. Key collisions
// across merged levels resolve last-write-wins in map iteration order.
func Flatten(v any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", v)
	return out
}

func flattenInto(out map[string]string, parent string, v any) {
	switch val := v.(type) {
	case nil:
		// Null values are treated as absent and leave no entry.
		return
	case map[string]any:
		if len(val) == 0 {
			return
		}
		// Notion-style date ranges get dedicated start/end keys.
		if isDateRange(val) {
			if s, ok := val["start"]; ok && s != nil {
				out[parent+"_start"] = scalarString(s)
			}
			if e, ok := val["end"]; ok && e != nil {
				out[parent+"_end"] = scalarString(e)
			}
			return
		}
		for k, child := range val {
			key := k
			if parent != "" {
				key = parent + "_" + k
			}
			flattenInto(out, key, child)
		}
	case []any:
		for i, child := range val {
			key := strconv.Itoa(i)
			if parent != "" {
				key = parent + "_" + strconv.Itoa(i)
			}
			flattenInto(out, key, child)
		}
	default:
		// Terminal scalar. Without a parent key there is nowhere to put it.
		if parent == "" {
			return
		}
		out[parent] = scalarString(v)
	}
}

// isDateRange reports whether m looks like a {start, end} date range object.
// Only start/end (and optional time_zone) keys qualify; anything else is a
// regular nested map.
func isDateRange(m map[string]any) bool {
	if _, hasStart := m["start"]; !hasStart {
		if _, hasEnd := m["end"]; !hasEnd {
			return false
		}
	}
	for k := range m {
		switch k {
		case "start", "end", "time_zone":
		default:
			return false
		}
	}
	return true
}

// scalarString renders a scalar metadata value as a string.
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		// JSON numbers arrive as float64; keep integers clean.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
