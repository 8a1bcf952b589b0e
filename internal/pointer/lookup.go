package pointer

import "strconv"

// Lookup walks root along path. Objects are map[string]any and arrays are
// []any, as produced by the parser. It reports false when any segment is
// missing.
func Lookup(root any, path Path) (any, bool) {
	cur := root
	for _, seg := range path {
		switch t := cur.(type) {
		case map[string]any:
			v, ok := t[seg.Key()]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i := seg.Index()
			if !seg.IsIndex() {
				n, err := strconv.Atoi(seg.Key())
				if err != nil {
					return nil, false
				}
				i = n
			}
			if i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
