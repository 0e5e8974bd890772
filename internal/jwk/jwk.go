// Package jwk defines the X25519 OKP JSON Web Key format the envelope codec
// exchanges key material in, plus CSPRNG key-pair generation and
// deterministic derivation for known-answer test vectors.
package jwk

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/curve25519"

	"github.com/x402hpke/envelope/internal/x402err"
)

// JWK is an X25519 OKP JSON Web Key (RFC 7517 / RFC 8037 OKP).
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`           // base64url public scalar, 32 bytes
	D   string `json:"d,omitempty"` // base64url private scalar, 32 bytes; present only on private-key JWKs
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
}

// b64 is base64url without padding, as spec §6 requires for every
// base64url-encoded field in this protocol.
var b64 = base64.RawURLEncoding

// PublicBytes decodes X into a 32-byte public scalar.
func (k *JWK) PublicBytes() ([32]byte, error) {
	return decode32(k.X, x402err.JWKSKeyInvalid, "x")
}

// PrivateBytes decodes D into a 32-byte private scalar.
func (k *JWK) PrivateBytes() ([32]byte, error) {
	if k.D == "" {
		return [32]byte{}, x402err.New(x402err.JWKSKeyInvalid, "JWK has no private scalar (d)")
	}
	return decode32(k.D, x402err.JWKSKeyInvalid, "d")
}

func decode32(field string, kind x402err.Kind, name string) ([32]byte, error) {
	var out [32]byte
	raw, err := b64.DecodeString(field)
	if err != nil {
		return out, x402err.Wrap(kind, "invalid base64url in JWK field "+name, err)
	}
	if len(raw) != 32 {
		return out, x402err.New(kind, "JWK field "+name+" must decode to exactly 32 bytes")
	}
	copy(out[:], raw)
	return out, nil
}

// Validate enforces the JWK shape §6/§3 requires: kty=="OKP", crv=="X25519",
// a 32-byte x (and d, if present), and use=="enc" when set.
func (k *JWK) Validate() error {
	if k.Kty != "OKP" {
		return x402err.New(x402err.JWKSKeyInvalid, `JWK kty must be "OKP"`)
	}
	if k.Crv != "X25519" {
		return x402err.New(x402err.JWKSKeyInvalid, `JWK crv must be "X25519"`)
	}
	if _, err := k.PublicBytes(); err != nil {
		return err
	}
	if k.D != "" {
		if _, err := k.PrivateBytes(); err != nil {
			return err
		}
	}
	if k.Use != "" && k.Use != "enc" {
		return x402err.New(x402err.JWKSKeyUseInval, `JWK use must be "enc" when present`)
	}
	return nil
}

// ValidateKid requires a non-empty kid, for contexts (JWKS selection) where
// one is mandatory.
func (k *JWK) ValidateKid() error {
	if k.Kid == "" {
		return x402err.New(x402err.JWKSKidInvalid, "JWK is missing a kid")
	}
	return nil
}

// GenerateKeyPair creates a fresh X25519 key pair from the process CSPRNG
// and returns (public, private) JWKs sharing the given kid.
func GenerateKeyPair(kid string) (pub *JWK, priv *JWK, err error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, nil, x402err.Wrap(x402err.JWKSKeyInvalid, "reading CSPRNG seed", err)
	}
	return FromSeed(seed, kid)
}

// FromSeed deterministically derives a key pair from a 32-byte seed, used
// for known-answer test vectors (spec §4.4 seal-side step 1) and for
// reproducible fixtures in this module's own tests.
func FromSeed(seed [32]byte, kid string) (pub *JWK, priv *JWK, err error) {
	var pubBytes [32]byte
	scalar := seed
	// Clamp per RFC 7748 §5 so the scalar is a valid X25519 private key.
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	pk, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, x402err.Wrap(x402err.JWKSKeyInvalid, "deriving X25519 public key", err)
	}
	copy(pubBytes[:], pk)

	pub = &JWK{Kty: "OKP", Crv: "X25519", X: b64.EncodeToString(pubBytes[:]), Kid: kid, Use: "enc"}
	priv = &JWK{Kty: "OKP", Crv: "X25519", X: b64.EncodeToString(pubBytes[:]), D: b64.EncodeToString(scalar[:]), Kid: kid, Use: "enc"}
	return pub, priv, nil
}
