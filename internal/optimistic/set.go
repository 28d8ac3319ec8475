// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package optimistic

import "sort"

// Set is an immutable set of ids. With and Without return new sets, so a
// Set can be held in a Value and rolled back by value.
type Set struct {
	m map[string]struct{}
}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int { return len(s.m) }

// With returns a copy containing id.
func (s Set) With(id string) Set {
	return s.set(id, true)
}

// Without returns a copy lacking id.
func (s Set) Without(id string) Set {
	return s.set(id, false)
}

// Toggled returns a copy with id's membership flipped.
func (s Set) Toggled(id string) Set {
	return s.set(id, !s.Has(id))
}

// set returns a copy with id present or absent.
func (s Set) set(id string, present bool) Set {
	m := make(map[string]struct{}, len(s.m)+1)
	for k := range s.m {
		m[k] = struct{}{}
	}
	if present {
		m[id] = struct{}{}
	} else {
		delete(m, id)
	}
	return Set{m: m}
}

// IDs returns the members sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
