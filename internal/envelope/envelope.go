// Package envelope implements the one-shot HPKE envelope seal/open codec:
// the transport model, AAD builder, KEM/KDF core, and sidecar projector are
// composed here into the wire-level Envelope record.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/x402hpke/envelope/internal/aad"
	"github.com/x402hpke/envelope/internal/canon"
	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/kemkdf"
	"github.com/x402hpke/envelope/internal/sidecar"
	"github.com/x402hpke/envelope/internal/transport"
	"github.com/x402hpke/envelope/internal/x402err"
)

const (
	typTag   = "hpke-envelope"
	verTag   = "1"
	suiteTag = "X25519-HKDF-SHA256-CHACHA20POLY1305"
	aeadTag  = "CHACHA20-POLY1305"
	kemTag   = kemkdf.KEMName
	kdfTag   = kemkdf.KDFName
)

var b64 = base64.RawURLEncoding

// Envelope is the immutable, self-describing wire record. Once emitted it
// is never mutated in place.
type Envelope struct {
	Typ   string `json:"typ"`
	Ver   string `json:"ver"`
	Suite string `json:"suite"`
	NS    string `json:"ns"`
	Kid   string `json:"kid"`
	Kem   string `json:"kem"`
	Kdf   string `json:"kdf"`
	Aead  string `json:"aead"`
	Enc   string `json:"enc"`
	Aad   string `json:"aad"`
	Ct    string `json:"ct"`
}

// SealInput bundles every seal-side input named in the envelope codec's
// contract.
type SealInput struct {
	NS                  string
	Kid                 string
	RecipientPublicJWK  *jwk.JWK
	Registry            *transport.Registry
	Transport           transport.Input
	MakeEntitiesPublic  *sidecar.Selection
	MakeEntitiesPrivate []string
	TestEphemeralSeed   *[32]byte
}

// SealResult is the seal output: the envelope record plus an optional
// sidecar projection (nil when nothing was selected for public disclosure).
type SealResult struct {
	Envelope   *Envelope
	Projection *sidecar.Projection
}

// Seal runs the full seal pipeline: validate transport, build AAD, derive
// key/nonce via KEM/KDF, encrypt, assemble the envelope, and project the
// optional sidecar.
func Seal(in SealInput) (*SealResult, error) {
	norm, err := transport.Validate(in.Registry, in.Transport)
	if err != nil {
		return nil, err
	}

	aadResult, err := aad.Build(in.NS, in.Registry, norm.AllHeaders(), norm.Body)
	if err != nil {
		return nil, err
	}

	plaintext, err := canon.Canonicalize(toAny(aadResult.BodyNormalized))
	if err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "canonicalizing plaintext body", err)
	}

	recipientPub, err := in.RecipientPublicJWK.PublicBytes()
	if err != nil {
		return nil, err
	}

	ephemeralPub, ephemeralPriv, err := kemkdf.GenerateEphemeral(in.TestEphemeralSeed)
	if err != nil {
		return nil, err
	}
	defer kemkdf.Zeroize(&ephemeralPriv)

	sharedSecret, err := kemkdf.SharedSecret(ephemeralPriv, recipientPub)
	if err != nil {
		return nil, err
	}
	defer kemkdf.Zeroize(&sharedSecret)

	encB64 := b64.EncodeToString(ephemeralPub[:])
	pkrB64 := b64.EncodeToString(recipientPub[:])
	keyNonce, err := kemkdf.Derive(sharedSecret, kemkdf.BuildInfo(in.NS, encB64, pkrB64))
	if err != nil {
		return nil, err
	}
	defer kemkdf.ZeroizeKeyNonce(&keyNonce)

	aead, err := chacha20poly1305.New(keyNonce.Key[:])
	if err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "constructing ChaCha20-Poly1305 AEAD", err)
	}
	ct := aead.Seal(nil, keyNonce.Nonce[:], plaintext, aadResult.Bytes)

	env := &Envelope{
		Typ:   typTag,
		Ver:   verTag,
		Suite: suiteTag,
		NS:    in.NS,
		Kid:   in.Kid,
		Kem:   kemTag,
		Kdf:   kdfTag,
		Aead:  aeadTag,
		Enc:   encB64,
		Aad:   b64.EncodeToString(aadResult.Bytes),
		Ct:    b64.EncodeToString(ct),
	}

	var proj *sidecar.Projection
	if in.MakeEntitiesPublic != nil {
		proj, err = sidecar.Project(aadResult.HeadersNormalized, aadResult.BodyNormalized, *in.MakeEntitiesPublic, in.MakeEntitiesPrivate, norm.EffectiveHTTPResponseCode)
		if err != nil {
			return nil, err
		}
		if proj.IsEmpty() {
			proj = nil
		}
	}

	return &SealResult{Envelope: env, Projection: proj}, nil
}

// OpenInput bundles every open-side input named in the envelope codec's
// contract.
type OpenInput struct {
	NS                  string
	RecipientPrivateJWK *jwk.JWK
	Envelope            *Envelope
	ExpectedKid         string
	Sidecar             *sidecar.VerifyInput
}

// OpenResult is the open output.
type OpenResult struct {
	Plaintext []byte
	Body      map[string]any
	Headers   []transport.HeaderEntry
}

// Open runs the full open pipeline: validate the envelope fields, decode,
// derive key/nonce, decrypt and authenticate, reconstruct headers/body from
// the AAD, and optionally verify a supplied sidecar.
func Open(in OpenInput) (*OpenResult, error) {
	env := in.Envelope
	if env.Ver != verTag {
		return nil, x402err.New(x402err.InvalidEnvelope, "unsupported envelope version")
	}
	if strings.EqualFold(env.NS, "x402") {
		return nil, x402err.New(x402err.NSForbidden, `envelope namespace must not be "x402"`)
	}
	if env.Aead != aeadTag {
		return nil, x402err.New(x402err.AEADMismatch, "envelope AEAD does not match "+aeadTag+": "+env.Aead)
	}
	if in.ExpectedKid != "" && in.ExpectedKid != env.Kid {
		return nil, x402err.New(x402err.KIDMismatch, "envelope kid does not match expected kid")
	}
	if in.NS != env.NS {
		return nil, x402err.New(x402err.NSMismatch, "configured namespace does not match envelope namespace")
	}

	encRaw, err := b64.DecodeString(env.Enc)
	if err != nil || len(encRaw) != 32 {
		return nil, x402err.New(x402err.InvalidEnvelope, "envelope enc must decode to exactly 32 bytes")
	}
	aadRaw, err := b64.DecodeString(env.Aad)
	if err != nil {
		return nil, x402err.New(x402err.InvalidEnvelope, "envelope aad is not valid base64url")
	}
	ctRaw, err := b64.DecodeString(env.Ct)
	if err != nil {
		return nil, x402err.New(x402err.InvalidEnvelope, "envelope ct is not valid base64url")
	}

	var ephemeralPub [32]byte
	copy(ephemeralPub[:], encRaw)

	recipientPriv, err := in.RecipientPrivateJWK.PrivateBytes()
	if err != nil {
		return nil, err
	}

	sharedSecret, err := kemkdf.SharedSecret(recipientPriv, ephemeralPub)
	if err != nil {
		return nil, err
	}
	defer kemkdf.Zeroize(&sharedSecret)

	recipientPub, err := kemkdf.BasePointMultiply(recipientPriv)
	if err != nil {
		return nil, err
	}

	pkrB64 := b64.EncodeToString(recipientPub[:])
	keyNonce, err := kemkdf.Derive(sharedSecret, kemkdf.BuildInfo(env.NS, env.Enc, pkrB64))
	if err != nil {
		return nil, err
	}
	defer kemkdf.ZeroizeKeyNonce(&keyNonce)

	aeadCipher, err := chacha20poly1305.New(keyNonce.Key[:])
	if err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "constructing ChaCha20-Poly1305 AEAD", err)
	}
	plaintext, err := aeadCipher.Open(nil, keyNonce.Nonce[:], ctRaw, aadRaw)
	if err != nil {
		return nil, x402err.New(x402err.InvalidEnvelope, "envelope authentication failed")
	}

	_, _, headersJSON, bodyJSON, err := aad.ParseSegments(string(aadRaw))
	if err != nil {
		return nil, err
	}

	headers, err := decodeHeaders(headersJSON)
	if err != nil {
		return nil, err
	}
	body, err := decodeBody(bodyJSON)
	if err != nil {
		return nil, err
	}

	if in.Sidecar != nil {
		if err := sidecar.Verify(headers, body, *in.Sidecar); err != nil {
			return nil, err
		}
	}

	return &OpenResult{Plaintext: plaintext, Body: body, Headers: headers}, nil
}

func decodeHeaders(headersJSON string) ([]transport.HeaderEntry, error) {
	var raw []struct {
		Name   string         `json:"name"`
		Value  map[string]any `json:"value"`
		Extras map[string]any `json:"extras"`
	}
	if err := json.Unmarshal([]byte(headersJSON), &raw); err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "AAD headers segment is not a JSON array", err)
	}
	out := make([]transport.HeaderEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, transport.HeaderEntry{Name: r.Name, Value: r.Value, Extras: r.Extras})
	}
	return out, nil
}

func decodeBody(bodyJSON string) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(bodyJSON), &body); err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "AAD body segment is not a JSON object", err)
	}
	return body, nil
}

// NewRequestID mints a unique identifier suitable for embedding in a
// transport extension's value (e.g. X-402-Metadata) as an AAD-bound
// dedupe/correlation hook. The codec itself imposes no replay-prevention
// semantics on this value; callers that need replay prevention build it on
// top of this hook (spec §1 Non-goals).
func NewRequestID() string {
	return uuid.NewString()
}

func toAny(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
