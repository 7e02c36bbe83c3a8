package random

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Token string prefixes. These are part of the wire contract: clients and
// test fixtures match on them, and introspection/revocation use them to
// detect the token type.
const (
	PrefixClientID          = "cl_"
	PrefixClientSecret      = "cs_"
	PrefixAuthorizationCode = "ac_"
	PrefixRefreshToken      = "rt_"
)

func NewBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return bytes, nil
}

// NewString returns a hex string carrying length bytes of entropy.
func NewString(length int) (string, error) {
	bytes, err := NewBytes(length)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// NewURLSafeString returns a base64url string carrying length bytes of entropy.
func NewURLSafeString(length int) (string, error) {
	bytes, err := NewBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewClientID mints a public client identifier (cl_<hex>, 16 bytes of entropy).
func NewClientID() (string, error) {
	s, err := NewString(16)
	if err != nil {
		return "", err
	}
	return PrefixClientID + s, nil
}

// NewClientSecret mints a client secret (cs_<hex>, 32 bytes of entropy).
// Only the bcrypt hash of the result is ever stored.
func NewClientSecret() (string, error) {
	s, err := NewString(32)
	if err != nil {
		return "", err
	}
	return PrefixClientSecret + s, nil
}

// NewAuthorizationCode mints a single-use authorization code (ac_<urlsafe>,
// 32 bytes of entropy).
func NewAuthorizationCode() (string, error) {
	s, err := NewURLSafeString(32)
	if err != nil {
		return "", err
	}
	return PrefixAuthorizationCode + s, nil
}

// NewRefreshToken mints an opaque refresh token (rt_<urlsafe>, 48 bytes of
// entropy).
func NewRefreshToken() (string, error) {
	s, err := NewURLSafeString(48)
	if err != nil {
		return "", err
	}
	return PrefixRefreshToken + s, nil
}
