package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/random"
)

// Signer is the injected key provider the token service signs through.
// Implementations must be safe for concurrent use; signing keys are
// read-only after load.
type Signer interface {
	// Sign signs claims with the active key and returns the compact JWT and
	// the kid written into its header.
	Sign(claims jwt.Claims) (token string, kid string, err error)
	// PublicKey returns the verification key for a kid. Rotated-out keys
	// stay resolvable so already-issued tokens keep verifying.
	PublicKey(kid string) (*rsa.PublicKey, error)
	// Keyfunc plugs into jwt.Parse for kid-based verification.
	Keyfunc(token *jwt.Token) (any, error)
	// JWKS returns the public key set for the jwks.json endpoint.
	JWKS() JWKSet
}

// Keyring holds RSA keypairs indexed by kid with one active signing key.
// Rotation adds a new active key and keeps the old ones for verification,
// so tokens issued mid-rotation stay valid until they expire.
type Keyring struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PrivateKey
	activeKID string
}

// NewEphemeralKeyring generates a fresh keypair. Tests and development
// deployments use this; nothing touches process-wide state.
func NewEphemeralKeyring(bits int) (*Keyring, error) {
	if bits != 2048 && bits != 3072 && bits != 4096 {
		bits = 2048
	}

	kr := &Keyring{keys: make(map[string]*rsa.PrivateKey)}
	if _, err := kr.Rotate(bits); err != nil {
		return nil, err
	}
	return kr, nil
}

// NewKeyringFromPEM loads a PKCS#8 or PKCS#1 private key under the given kid.
func NewKeyringFromPEM(pemBytes []byte, kid string) (*Keyring, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, apperrors.SigningKeyUnavailableError("no PEM block found in signing key material", nil)
	}

	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, apperrors.SigningKeyUnavailableError("signing key is not an RSA key", nil)
		}
		key = rsaKey
	} else if parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = parsed
	} else {
		return nil, apperrors.SigningKeyUnavailableError("failed to parse signing key PEM", err)
	}

	if kid == "" {
		generated, err := random.NewString(12)
		if err != nil {
			return nil, apperrors.SigningKeyUnavailableError("failed to generate key ID", err)
		}
		kid = generated
	}

	return &Keyring{
		keys:      map[string]*rsa.PrivateKey{kid: key},
		activeKID: kid,
	}, nil
}

// Rotate generates a new keypair, makes it the active signing key, and
// returns its kid. Previous keys remain available for verification.
func (kr *Keyring) Rotate(bits int) (string, error) {
	if bits != 2048 && bits != 3072 && bits != 4096 {
		bits = 2048
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", apperrors.SigningKeyUnavailableError("failed to generate RSA key", err)
	}

	kid, err := random.NewString(12)
	if err != nil {
		return "", apperrors.SigningKeyUnavailableError("failed to generate key ID", err)
	}

	kr.mu.Lock()
	kr.keys[kid] = key
	kr.activeKID = kid
	kr.mu.Unlock()

	return kid, nil
}

// ActiveKID returns the kid of the current signing key.
func (kr *Keyring) ActiveKID() string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.activeKID
}

func (kr *Keyring) Sign(claims jwt.Claims) (string, string, error) {
	kr.mu.RLock()
	kid := kr.activeKID
	key := kr.keys[kid]
	kr.mu.RUnlock()

	if key == nil {
		return "", "", apperrors.SigningKeyUnavailableError("no active signing key", nil)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", "", apperrors.SigningKeyUnavailableError("failed to sign token", err)
	}

	return signed, kid, nil
}

func (kr *Keyring) PublicKey(kid string) (*rsa.PublicKey, error) {
	kr.mu.RLock()
	key, ok := kr.keys[kid]
	kr.mu.RUnlock()

	if !ok {
		return nil, apperrors.SigningKeyUnavailableError(fmt.Sprintf("unknown key ID %s", kid), nil)
	}
	return &key.PublicKey, nil
}

// Keyfunc resolves the verification key for jwt.Parse. Only RS256 family
// methods are accepted; anything else is rejected before key lookup.
func (kr *Keyring) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("token header carries no kid")
	}

	return kr.PublicKey(kid)
}

func (kr *Keyring) JWKS() JWKSet {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	kids := make([]string, 0, len(kr.keys))
	for kid := range kr.keys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := JWKSet{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		set.Keys = append(set.Keys, publicJWK(kid, &kr.keys[kid].PublicKey))
	}
	return set
}
