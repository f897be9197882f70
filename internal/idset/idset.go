// Package idset models the list-valued document fields that are semantically sets
// (achievement ids, rewarded voters, followed users).
package idset

import "sort"

type Set map[string]struct{}

// From builds a set from a stored list, dropping blanks and duplicates.
func From(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was absent.
func (s Set) Add(id string) bool {
	if id == "" || s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s Set) Len() int { return len(s) }

// Union returns a new set holding the members of both.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Diff returns the members of s missing from other.
func (s Set) Diff(other Set) Set {
	out := make(Set)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Slice returns the members in sorted order for persistence.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AppendMissing appends the ids not already present in list, keeping list's order.
func AppendMissing(list []string, ids ...string) []string {
	seen := From(list)
	out := append([]string(nil), list...)
	for _, id := range ids {
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}
