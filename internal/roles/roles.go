// Package roles expands a caller's role into the set of document roles the
// caller may see.
package roles

import "strings"

const (
	Admin    = "Admin"
	Editor   = "Editor"
	Internal = "Internal"
	User     = "User"
)

// hierarchy is ordered from most to least privileged. Each role sees its own
// documents and those of every role after it.
var hierarchy = []string{Admin, Editor, Internal, User}

// Set is an immutable visible-role set.
type Set struct {
	names []string
	all   bool
}

// Visible returns the roles visible to a caller holding role. An unknown role
// maps to a set holding only its literal value.
func Visible(role string) Set {
	if i := rank(role); i >= 0 {
		names := make([]string, len(hierarchy)-i)
		copy(names, hierarchy[i:])
		return Set{names: names}
	}
	return Set{names: []string{role}}
}

// Unrestricted returns a set that contains every role, including ones
// outside the hierarchy.
func Unrestricted() Set {
	return Set{all: true}
}

// Contains reports whether documents with role are visible.
func (s Set) Contains(role string) bool {
	if s.all {
		return true
	}
	for _, n := range s.names {
		if n == role {
			return true
		}
	}
	return false
}

// Names returns the visible roles, most privileged first. It is nil for an
// unrestricted set.
func (s Set) Names() []string {
	if s.all {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// IsUnrestricted reports whether the set was built by Unrestricted.
func (s Set) IsUnrestricted() bool {
	return s.all
}

// Canonical returns the hierarchy spelling of role and whether it is known.
func Canonical(role string) (string, bool) {
	if i := rank(role); i >= 0 {
		return hierarchy[i], true
	}
	return role, false
}

// AtLeast reports whether role is known and at least as privileged as min.
func AtLeast(role, min string) bool {
	r, m := rank(role), rank(min)
	return r >= 0 && m >= 0 && r <= m
}

// Filter keeps the items whose role is in s.
func Filter[T any](items []T, s Set, roleOf func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if s.Contains(roleOf(item)) {
			out = append(out, item)
		}
	}
	return out
}

func rank(role string) int {
	for i, r := range hierarchy {
		if strings.EqualFold(r, strings.TrimSpace(role)) {
			return i
		}
	}
	return -1
}
