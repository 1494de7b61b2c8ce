package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/schema"
)

// sortStable orders items by specs. Ties keep input order and nil values
// always sort last, whatever the direction.
func sortStable(items []Item, specs []SortSpec) {
	slices.SortStableFunc(items, func(a, b Item) int {
		for _, s := range specs {
			av, bv := a.Row[s.Column], b.Row[s.Column]
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return 1
			case bv == nil:
				return -1
			}
			c := compareValues(av, bv)
			if c == 0 {
				continue
			}
			if s.Desc() {
				return -c
			}
			return c
		}
		return 0
	})
}

// compareValues compares two non-nil cell values. Numbers compare
// numerically, booleans false before true, everything else as
// case-insensitive text.
func compareValues(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	as, bs := strings.ToLower(schema.Format(a)), strings.ToLower(schema.Format(b))
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
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
