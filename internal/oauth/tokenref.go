package oauth

import (
	"strings"

	"github.com/truxe-io/heimdall/internal/random"
)

// TokenKind classifies a token string presented to introspection or
// revocation, where the caller does not say what it is holding.
type TokenKind int

const (
	TokenKindUnknown TokenKind = iota
	TokenKindAccessJWT
	TokenKindOpaqueRefresh
)

func (k TokenKind) String() string {
	switch k {
	case TokenKindAccessJWT:
		return "access_token"
	case TokenKindOpaqueRefresh:
		return "refresh_token"
	default:
		return "unknown"
	}
}

// TokenRef is the parsed form of a presented token string.
type TokenRef struct {
	Kind  TokenKind
	Value string
}

// ParseTokenRef detects the token type from its shape: rt_-prefixed strings
// are opaque refresh tokens, three non-empty dot-separated segments are
// JWTs, anything else is unknown. Unknown never errors; introspection
// reports it inactive and revocation no-ops.
func ParseTokenRef(token string) TokenRef {
	ref := TokenRef{Kind: TokenKindUnknown, Value: token}
	if token == "" {
		return ref
	}

	if strings.HasPrefix(token, random.PrefixRefreshToken) {
		ref.Kind = TokenKindOpaqueRefresh
		return ref
	}

	parts := strings.Split(token, ".")
	if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		ref.Kind = TokenKindAccessJWT
	}

	return ref
}
