package schemanode

// MergeAllOf folds the allOf branches of m into a single fragment.
//
// The fragment's own keys form the base and branches are applied left to
// right: "type" keeps the first declaration, "required" concatenates without
// duplicates, "properties" and "patternProperties" union by key (the same key
// merges recursively), nested "items" objects merge recursively, and every
// other key is last-write-wins. $ref branches are resolved through resolve;
// if a branch cannot be resolved or is not an object, the merge is abandoned
// and ok is false. Inputs are never mutated.
func MergeAllOf(m map[string]any, resolve Resolver) (map[string]any, bool) {
	return mergeAllOf(m, resolve, map[string]bool{})
}

func mergeAllOf(m map[string]any, resolve Resolver, seen map[string]bool) (map[string]any, bool) {
	branches, ok := m[AllOf].([]any)
	if !ok {
		return m, false
	}
	base := make(map[string]any, len(m))
	for k, v := range m {
		if k != AllOf {
			base[k] = v
		}
	}
	for _, b := range branches {
		bm, ok := b.(map[string]any)
		if !ok {
			return nil, false
		}
		followed := ""
		if ref, isRef := bm["$ref"]; isRef {
			s, ok := ref.(string)
			if !ok || resolve == nil || seen[s] {
				return nil, false
			}
			target, ok := resolve(s)
			if !ok {
				return nil, false
			}
			tm, ok := target.(map[string]any)
			if !ok {
				return nil, false
			}
			if _, chained := tm["$ref"]; chained {
				return nil, false
			}
			seen[s] = true
			followed = s
			bm = tm
		}
		if _, nested := bm[AllOf]; nested {
			nm, ok := mergeAllOf(bm, resolve, seen)
			if !ok {
				return nil, false
			}
			bm = nm
		}
		if followed != "" {
			delete(seen, followed)
		}
		base = mergeInto(base, bm)
	}
	return base, true
}

// mergeInto applies src over dst and returns dst. dst must be owned by the
// caller; nested maps are copied before they are modified.
func mergeInto(dst, src map[string]any) map[string]any {
	for k, v := range src {
		cur, exists := dst[k]
		if !exists {
			dst[k] = v
			continue
		}
		switch k {
		case "type":
			// first declaration wins
		case "required":
			dst[k] = unionRequired(cur, v)
		case "properties", "patternProperties":
			dst[k] = mergeSchemaMaps(cur, v)
		case "items":
			a, aok := cur.(map[string]any)
			b, bok := v.(map[string]any)
			if aok && bok {
				dst[k] = mergeInto(cloneMap(a), b)
			} else {
				dst[k] = v
			}
		default:
			dst[k] = v
		}
	}
	return dst
}

func mergeSchemaMaps(cur, next any) any {
	a, aok := cur.(map[string]any)
	b, bok := next.(map[string]any)
	if !aok || !bok {
		return next
	}
	out := cloneMap(a)
	for name, sb := range b {
		sa, exists := out[name]
		if !exists {
			out[name] = sb
			continue
		}
		ma, aok := sa.(map[string]any)
		mb, bok := sb.(map[string]any)
		if aok && bok {
			out[name] = mergeInto(cloneMap(ma), mb)
		} else {
			out[name] = sb
		}
	}
	return out
}

func unionRequired(cur, next any) []any {
	seen := map[string]bool{}
	var out []any
	for _, list := range []any{cur, next} {
		for _, s := range stringList(list) {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
