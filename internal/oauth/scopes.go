package oauth

import (
	"slices"
	"strings"
)

// SplitScope splits a space-delimited scope string per RFC 6749 §3.3.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope joins scopes into the space-delimited wire form.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopesWithin reports whether every requested scope is a member of allowed.
func ScopesWithin(requested, allowed []string) bool {
	return len(DisallowedScopes(requested, allowed)) == 0
}

// DisallowedScopes returns the requested scopes missing from allowed, in
// request order. Error messages list these so callers can see exactly what
// was rejected.
func DisallowedScopes(requested, allowed []string) []string {
	var disallowed []string
	for _, scope := range requested {
		if !slices.Contains(allowed, scope) {
			disallowed = append(disallowed, scope)
		}
	}
	return disallowed
}
