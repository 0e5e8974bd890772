// Package sidecar implements the selective public-disclosure projection and
// its matching verifier. A sidecar lets untrusted middleware route or
// rate-limit on a subset of fields without ever seeing the envelope
// plaintext or breaking the envelope's authentication.
package sidecar

import (
	"crypto/subtle"
	"strings"

	"github.com/x402hpke/envelope/internal/canon"
	"github.com/x402hpke/envelope/internal/transport"
	"github.com/x402hpke/envelope/internal/x402err"
)

// Selection is the seal-side request: either the literal "all"/"*", an
// explicit list of names, or absent (nil Names, not All).
type Selection struct {
	All   bool
	Names []string
}

// Projection is the sidecar computed on seal.
type Projection struct {
	PublicHeaders map[string]string // uppercaseCanonicalName -> canonicalJson(value)
	PublicBody    map[string]any    // key -> bodyNormalized[key], verbatim
}

// IsEmpty reports whether neither selection produced anything, in which
// case the caller should omit the sidecar entirely.
func (p *Projection) IsEmpty() bool {
	return p == nil || (len(p.PublicHeaders) == 0 && len(p.PublicBody) == 0)
}

func matches(requested Selection, exclude map[string]bool, name string) bool {
	if exclude[strings.ToLower(name)] {
		return false
	}
	if requested.All {
		return true
	}
	for _, n := range requested.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Project computes the public sidecar from the normalized headers/body,
// the requested makeEntitiesPublic selection, and an optional
// makeEntitiesPrivate subtraction list, applying the rule that a 402
// response (PAYMENT_REQUIRED) always excludes the core payment header
// names from consideration regardless of what was requested.
func Project(headersNormalized []transport.HeaderEntry, bodyNormalized map[string]any, requested Selection, makeEntitiesPrivate []string, effectiveHTTPResponseCode *int) (*Projection, error) {
	exclude := make(map[string]bool, len(makeEntitiesPrivate))
	for _, n := range makeEntitiesPrivate {
		exclude[strings.ToLower(n)] = true
	}
	if effectiveHTTPResponseCode != nil && *effectiveHTTPResponseCode == 402 {
		exclude[strings.ToLower(transport.CoreHeaderPayment)] = true
		exclude[strings.ToLower(transport.CoreHeaderPaymentResponse)] = true
	}

	proj := &Projection{PublicHeaders: map[string]string{}, PublicBody: map[string]any{}}

	for _, h := range headersNormalized {
		if !matches(requested, exclude, h.Name) {
			continue
		}
		value, err := canon.CanonicalizeToString(normalize(h.Value))
		if err != nil {
			return nil, x402err.Wrap(x402err.InvalidEnvelope, "canonicalizing header value for sidecar projection", err)
		}
		proj.PublicHeaders[strings.ToUpper(h.Name)] = value
	}

	for key, value := range bodyNormalized {
		if !matches(requested, exclude, key) {
			continue
		}
		proj.PublicBody[key] = value
	}

	return proj, nil
}

func normalize(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// VerifyInput bundles the caller-supplied sidecar for open-side
// verification against the reconstructed headersNormalized/bodyNormalized.
type VerifyInput struct {
	PublicHeaders map[string]string
	PublicBody    map[string]any
}

// Verify checks every entry of the supplied sidecar against the AAD-derived
// normalized headers and body, failing closed on any entry that is either
// absent from the AAD or whose value does not match byte-for-byte.
func Verify(headersNormalized []transport.HeaderEntry, bodyNormalized map[string]any, in VerifyInput) error {
	byName := make(map[string]transport.HeaderEntry, len(headersNormalized))
	for _, h := range headersNormalized {
		byName[strings.ToLower(h.Name)] = h
	}

	for name, supplied := range in.PublicHeaders {
		entry, ok := byName[strings.ToLower(name)]
		if !ok {
			return x402err.New(x402err.PublicKeyNotInAAD, "sidecar header not present in AAD: "+name)
		}
		expected, err := canon.CanonicalizeToString(normalize(entry.Value))
		if err != nil {
			return x402err.Wrap(x402err.InvalidEnvelope, "canonicalizing expected header value", err)
		}
		if !constantTimeEqual(expected, strings.TrimSpace(supplied)) {
			return x402err.New(x402err.AADMismatch, "sidecar header value mismatch: "+name)
		}
	}

	for key, supplied := range in.PublicBody {
		actual, ok := bodyNormalized[key]
		if !ok {
			return x402err.New(x402err.PublicKeyNotInAAD, "sidecar body key not present in AAD: "+key)
		}
		expected, err := canon.CanonicalizeToString(actual)
		if err != nil {
			return x402err.Wrap(x402err.InvalidEnvelope, "canonicalizing expected body value", err)
		}
		suppliedJSON, err := canon.CanonicalizeToString(supplied)
		if err != nil {
			return x402err.Wrap(x402err.InvalidEnvelope, "canonicalizing supplied body value", err)
		}
		if !constantTimeEqual(expected, suppliedJSON) {
			return x402err.New(x402err.AADMismatch, "sidecar body value mismatch: "+key)
		}
	}

	return nil
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
