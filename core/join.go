package core

// In-process joins.
// The store cannot always embed related rows, so services fetch each table
// separately and stitch them together with these helpers.

// IndexBy builds a lookup map from key(row) to row. Later rows win on duplicate keys.
func IndexBy[K comparable, V any](rows []V, key func(V) K) map[K]V {
	idx := make(map[K]V, len(rows))
	for _, row := range rows {
		idx[key(row)] = row
	}
	return idx
}

// GroupBy builds a lookup map from key(row) to every row sharing that key, in input order.
func GroupBy[K comparable, V any](rows []V, key func(V) K) map[K][]V {
	groups := make(map[K][]V)
	for _, row := range rows {
		k := key(row)
		groups[k] = append(groups[k], row)
	}
	return groups
}

// Attach joins every left row to its referenced right row (if any) and reshapes the pair with fn.
// Left rows whose foreign key has no match are still passed to fn, with ok == false.
func Attach[L any, K comparable, R any, O any](left []L, fk func(L) K, right map[K]R, fn func(l L, r R, ok bool) O) []O {
	out := make([]O, 0, len(left))
	for _, l := range left {
		r, ok := right[fk(l)]
		out = append(out, fn(l, r, ok))
	}
	return out
}

// Keys returns the distinct keys of rows, in first-seen order. Handy to build `in.(…)` filters.
func Keys[K comparable, V any](rows []V, key func(V) K) []K {
	seen := make(map[K]struct{}, len(rows))
	keys := make([]K, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
