package classify

import (
	"encoding/json"
	"sort"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

// maxSearchDepth bounds the nested-object search. Vendor payloads wrap
// position under a varying number of envelope objects; three levels covers
// every shape seen on the bus while keeping the search safe on hostile or
// cyclic-looking input.
const maxSearchDepth = 3

func parseObject(payload []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false
	}
	return m, true
}

// findKey locates key in m or any nested object up to maxSearchDepth levels
// down. The walk is breadth-first with keys visited in sorted order, so the
// result is deterministic regardless of map iteration.
func findKey(m map[string]any, key string) (any, bool) {
	level := []map[string]any{m}
	for depth := 0; depth <= maxSearchDepth && len(level) > 0; depth++ {
		var next []map[string]any
		for _, obj := range level {
			if v, ok := obj[key]; ok {
				return v, true
			}
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if child, ok := obj[k].(map[string]any); ok {
					next = append(next, child)
				}
			}
		}
		level = next
	}
	return nil, false
}

func getFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func getString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getObject(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	o, ok := v.(map[string]any)
	return o, ok
}

// findFloat is findKey restricted to numeric leaves.
func findFloat(m map[string]any, key string) (float64, bool) {
	v, ok := findKey(m, key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// coords extracts a validated coordinate pair, searching nested wrappers.
// Missing halves and the (0,0) null-island artifact both yield nil pointers:
// position-absent, never position-zero.
func coords(m map[string]any, latKey, lonKey string) (*float64, *float64) {
	lat, okLat := findFloat(m, latKey)
	lon, okLon := findFloat(m, lonKey)
	if !okLat || !okLon {
		return nil, nil
	}
	latP, lonP := &lat, &lon
	if !domain.ValidCoords(latP, lonP) {
		return nil, nil
	}
	return latP, lonP
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
