// Package kemkdf implements the X25519 key encapsulation and HKDF-SHA256
// key derivation core shared by seal and open. Both sides build the same
// bound "info" string and derive the same 44-byte HKDF-Expand output
// (32-byte AEAD key || 12-byte nonce) from the same X25519 shared secret.
package kemkdf

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/x402hpke/envelope/internal/x402err"
)

const (
	KDFName  = "HKDF-SHA256"
	AEADName = "CHACHA20-POLY1305"
	KEMName  = "X25519"

	keyLen   = 32
	nonceLen = 12
	okmLen   = keyLen + nonceLen
)

// KeyNonce is the derived AEAD key and nonce pair.
type KeyNonce struct {
	Key   [32]byte
	Nonce [12]byte
}

// zero32 is compared against to detect an all-zero 32-byte value — either a
// contributory low-order public key or a degenerate shared secret.
var zero32 [32]byte

func isZero(b [32]byte) bool { return b == zero32 }

// GenerateEphemeral creates a fresh ephemeral X25519 key pair from the
// process CSPRNG, or — when seed is non-nil — deterministically from a
// supplied 32-byte seed for known-answer test vectors (spec §4.4 step 1).
func GenerateEphemeral(seed *[32]byte) (pub, priv [32]byte, err error) {
	var scalar [32]byte
	if seed != nil {
		scalar = *seed
	} else if _, err := rand.Read(scalar[:]); err != nil {
		return pub, priv, x402err.Wrap(x402err.InvalidEnvelope, "reading CSPRNG for ephemeral key", err)
	}
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	pubSlice, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return pub, priv, x402err.Wrap(x402err.ECDHLowOrder, "deriving ephemeral public key", err)
	}
	copy(pub[:], pubSlice)
	priv = scalar
	return pub, priv, nil
}

// BasePointMultiply recovers a public key from a private scalar — used on
// the open side to reconstruct pkR from the recipient's private key for
// the HKDF info string (spec §4.4 open-side mirror).
func BasePointMultiply(priv [32]byte) ([32]byte, error) {
	var out [32]byte
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return out, x402err.Wrap(x402err.ECDHLowOrder, "deriving public key from private scalar", err)
	}
	copy(out[:], pubSlice)
	return out, nil
}

// SharedSecret performs the X25519 scalar multiplication ourPriv * theirPub
// and rejects an all-zero input public key or an all-zero (low-order /
// contributory-ECDH-failure) result.
func SharedSecret(ourPriv, theirPub [32]byte) ([32]byte, error) {
	var secret [32]byte
	if isZero(theirPub) {
		return secret, x402err.New(x402err.ECDHLowOrder, "public key is all-zero")
	}
	secretSlice, err := curve25519.X25519(ourPriv[:], theirPub[:])
	if err != nil {
		return secret, x402err.Wrap(x402err.ECDHLowOrder, "X25519 scalar multiplication failed", err)
	}
	copy(secret[:], secretSlice)
	if isZero(secret) {
		return secret, x402err.New(x402err.ECDHLowOrder, "shared secret is all-zero (low-order point)")
	}
	return secret, nil
}

// BuildInfo constructs the HKDF info string exactly as spec §4.4/§6
// requires: "x402-hpke:v1|KDF=<KDF>|AEAD=<AEAD>|ns=<NS>|enc=<ENC_B64URL>|pkR=<PKR_B64URL>".
// encB64/pkrB64 must already be base64url-without-padding encoded.
func BuildInfo(ns, encB64, pkrB64 string) []byte {
	return []byte("x402-hpke:v1|KDF=" + KDFName + "|AEAD=" + AEADName + "|ns=" + ns + "|enc=" + encB64 + "|pkR=" + pkrB64)
}

// Derive runs HKDF-Extract (32-byte all-zero salt) then HKDF-Expand(info,
// 44 bytes) over the shared secret, splitting the output into the 32-byte
// AEAD key and 12-byte nonce.
func Derive(sharedSecret [32]byte, info []byte) (KeyNonce, error) {
	salt := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, sharedSecret[:], salt, info)
	okm := make([]byte, okmLen)
	if _, err := io.ReadFull(r, okm); err != nil {
		return KeyNonce{}, x402err.Wrap(x402err.InvalidEnvelope, "HKDF-Expand failed", err)
	}
	var kn KeyNonce
	copy(kn.Key[:], okm[:keyLen])
	copy(kn.Nonce[:], okm[keyLen:])
	return kn, nil
}

// Zeroize overwrites key material in place. Called once derived key/nonce
// (and the ephemeral private scalar) are no longer needed, per spec §5's
// zeroization requirement. Go's garbage collector may have already copied
// the bytes elsewhere; this is a best-effort defense-in-depth measure, not
// a hard guarantee, which is the honest limit of zeroing in a managed
// runtime without a pinned, non-moving allocation.
func Zeroize(b *[32]byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeKeyNonce zeroizes both fields of a KeyNonce.
func ZeroizeKeyNonce(kn *KeyNonce) {
	Zeroize(&kn.Key)
	for i := range kn.Nonce {
		kn.Nonce[i] = 0
	}
}
