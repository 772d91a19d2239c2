package domain

import "strings"

// NormalizeRoleNames trims each name and drops duplicates, keeping the first
// occurrence order. A blank name makes the whole list invalid.
func NormalizeRoleNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, ErrInvalidRequest
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, ErrInvalidRequest
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// DiffRoles returns the names present in desired but not in current (toAdd)
// and those present in current but not in desired (toRemove).
func DiffRoles(current, desired []string) (toAdd, toRemove []string) {
	cur := make(map[string]struct{}, len(current))
	for _, r := range current {
		cur[r] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, r := range desired {
		want[r] = struct{}{}
		if _, ok := cur[r]; !ok {
			toAdd = append(toAdd, r)
		}
	}
	for _, r := range current {
		if _, ok := want[r]; !ok {
			toRemove = append(toRemove, r)
		}
	}
	return toAdd, toRemove
}

// SameRoles reports set equality, ignoring order and duplicates.
func SameRoles(a, b []string) bool {
	add, remove := DiffRoles(a, b)
	return len(add) == 0 && len(remove) == 0
}
