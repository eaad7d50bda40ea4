// Package mergedoc implements a deterministic deep merge over JSON-shaped
// documents (map[string]any, []any, scalars). It is used to reconcile
// generated editor configuration with files the user already has: the
// overlay wins on conflicting scalars, user keys the overlay does not
// mention are preserved.
package mergedoc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Merge combines base and overlay and returns the merged document.
// Neither input is mutated.
//
// Rules, decided by the structural type of the nodes at each path:
//   - object + object: merge per key, recursing on keys present in both
//   - array + array: base then overlay, duplicate scalar elements removed
//     keeping the first occurrence; object elements are never deduplicated
//   - anything else (scalar, or mismatched types): overlay replaces base
func Merge(base, overlay any) any {
	switch o := overlay.(type) {
	case map[string]any:
		b, ok := base.(map[string]any)
		if !ok {
			return cloneValue(o)
		}
		return mergeMaps(b, o)
	case []any:
		b, ok := base.([]any)
		if !ok {
			return cloneValue(o)
		}
		return mergeArrays(b, o)
	default:
		return overlay
	}
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, ov := range overlay {
		bv, exists := out[k]
		if !exists {
			out[k] = cloneValue(ov)
			continue
		}
		out[k] = Merge(bv, ov)
	}
	return out
}

func mergeArrays(base, overlay []any) []any {
	out := make([]any, 0, len(base)+len(overlay))
	seen := make(map[string]bool)
	appendElem := func(v any) {
		if isScalar(v) {
			key := scalarKey(v)
			if seen[key] {
				return
			}
			seen[key] = true
		}
		out = append(out, cloneValue(v))
	}
	for _, v := range base {
		appendElem(v)
	}
	for _, v := range overlay {
		appendElem(v)
	}
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

// scalarKey distinguishes scalars of different kinds that print alike,
// e.g. "1" and 1, or "true" and true. Numbers are keyed by value, not
// Go type: a yaml-decoded int and a json-decoded float64 holding the
// same number must collide.
func scalarKey(v any) string {
	if f, ok := numericValue(v); ok {
		return "num:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports deep structural equality of two documents. Object key
// order is irrelevant; array order matters.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, exists := bv[k]
			if !exists || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		if isScalar(b) {
			return scalarKey(a) == scalarKey(b)
		}
		return false
	}
}

// Override records one base value the overlay replaces.
type Override struct {
	Path string // dotted key path, e.g. "python.linting.enabled"
	Old  any
	New  any
}

// Overrides lists the scalar conflicts a Merge of the same inputs would
// resolve in the overlay's favor, sorted by path. Keys only present in
// the overlay are additions, not overrides, and are not reported.
func Overrides(base, overlay map[string]any) []Override {
	var out []Override
	collectOverrides(base, overlay, nil, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectOverrides(base, overlay map[string]any, prefix []string, out *[]Override) {
	for k, ov := range overlay {
		bv, exists := base[k]
		if !exists {
			continue
		}
		bm, bIsMap := bv.(map[string]any)
		om, oIsMap := ov.(map[string]any)
		if bIsMap && oIsMap {
			collectOverrides(bm, om, append(prefix, k), out)
			continue
		}
		// Array pairs concatenate on merge; the base elements survive,
		// so there is nothing to report as overridden.
		if _, bIsArr := bv.([]any); bIsArr {
			if _, oIsArr := ov.([]any); oIsArr {
				continue
			}
		}
		if !Equal(bv, ov) {
			*out = append(*out, Override{
				Path: strings.Join(append(prefix, k), "."),
				Old:  bv,
				New:  ov,
			})
		}
	}
}
