package domain

import (
	"slices"
	"strings"
)

// Scopes granted to gateway tokens.
const (
	ScopeFitnessRead   = "fitness:read"
	ScopeAnalyticsRead = "analytics:read"
	ScopeGoalsRead     = "goals:read"
	ScopeGoalsWrite    = "goals:write"
	ScopeTasksWrite    = "tasks:write"
)

// KnownScopes lists every scope a client may be allowed, in display order.
var KnownScopes = []string{
	ScopeFitnessRead,
	ScopeAnalyticsRead,
	ScopeGoalsRead,
	ScopeGoalsWrite,
	ScopeTasksWrite,
}

func IsKnownScope(s string) bool {
	return slices.Contains(KnownScopes, s)
}

// ParseScope splits a space-delimited OAuth scope string, dropping blanks and duplicates.
func ParseScope(raw string) []string {
	var out []string
	for _, s := range strings.Fields(raw) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// IntersectScopes returns the requested scopes that are also allowed,
// preserving request order. An empty request means "everything allowed".
func IntersectScopes(requested, allowed []string) []string {
	if len(requested) == 0 {
		return slices.Clone(allowed)
	}
	var out []string
	for _, s := range requested {
		if slices.Contains(allowed, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// HasScope reports whether granted contains want.
func HasScope(granted []string, want string) bool {
	return slices.Contains(granted, want)
}
