package jwks

import (
	"crypto/rsa"
	"encoding/base64"
)

// JWK is a public JSON Web Key as served by the jwks.json endpoint.
type JWK struct {
	KTY    string   `json:"kty"`
	Use    string   `json:"use"`
	Alg    string   `json:"alg"`
	KID    string   `json:"kid"`
	N      string   `json:"n"`
	E      string   `json:"e"`
	KeyOps []string `json:"key_ops,omitempty"`
}

// JWKSet is a JSON Web Key Set (RFC 7517).
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// publicJWK projects an RSA public key into JWK form. Private material never
// leaves this package.
func publicJWK(kid string, pub *rsa.PublicKey) JWK {
	nBytes := pub.N.Bytes()

	eBytes := make([]byte, 4)
	eBytes[0] = byte(pub.E >> 24)
	eBytes[1] = byte(pub.E >> 16)
	eBytes[2] = byte(pub.E >> 8)
	eBytes[3] = byte(pub.E)
	for len(eBytes) > 1 && eBytes[0] == 0 {
		eBytes = eBytes[1:]
	}

	return JWK{
		KTY:    "RSA",
		Use:    "sig",
		Alg:    "RS256",
		KID:    kid,
		N:      base64.RawURLEncoding.EncodeToString(nBytes),
		E:      base64.RawURLEncoding.EncodeToString(eBytes),
		KeyOps: []string{"verify"},
	}
}
