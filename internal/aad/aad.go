// Package aad builds the canonical associated-authenticated-data bytes that
// bind transport metadata to the HPKE envelope's ciphertext. Canonical AAD
// is a pure function of (ns, headers, body): two implementations given the
// same logical input must emit byte-identical output (spec §8).
package aad

import (
	"fmt"
	"sort"
	"strings"

	"github.com/x402hpke/envelope/internal/canon"
	"github.com/x402hpke/envelope/internal/transport"
	"github.com/x402hpke/envelope/internal/x402err"
)

// reservedNamespace is the case-insensitive namespace value that is always
// rejected — it would collide with the protocol's own info-string tag.
const reservedNamespace = "x402"

// version is the AAD segment-2 tag; bumping it is a wire-format change.
const version = "v1"

// Result is the AAD builder's output: the canonical AAD bytes plus
// normalized copies of the headers and body for later equality checks
// (sidecar verification, plaintext reconstruction on open).
type Result struct {
	Bytes             []byte
	HeadersNormalized []transport.HeaderEntry
	BodyNormalized    map[string]any
}

// Build runs the §4.3 algorithm over (ns, headers, body) and returns the
// canonical AAD bytes alongside normalized copies of the inputs.
func Build(ns string, reg *transport.Registry, headers []transport.HeaderEntry, body map[string]any) (*Result, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}

	canonicalHeaders, err := canonicalizeHeaders(reg, headers)
	if err != nil {
		return nil, err
	}

	if err := checkBodyCollisions(body, canonicalHeaders); err != nil {
		return nil, err
	}

	headersJSON, err := headersToCanonicalJSON(canonicalHeaders)
	if err != nil {
		return nil, err
	}
	bodyJSON, err := canon.Canonicalize(toAnyMap(body))
	if err != nil {
		return nil, fmt.Errorf("aad: canonicalizing body: %w", err)
	}

	aadBytes := []byte(ns + "|" + version + "|" + string(headersJSON) + "|" + string(bodyJSON))

	return &Result{
		Bytes:             aadBytes,
		HeadersNormalized: canonicalHeaders,
		BodyNormalized:    body,
	}, nil
}

// ValidateNamespace exposes the §4.3 step-1 namespace check so seal/open
// callers can reject a forbidden namespace before doing any other work.
func ValidateNamespace(ns string) error { return validateNamespace(ns) }

func validateNamespace(ns string) error {
	if ns == "" {
		return x402err.New(x402err.NSForbidden, "namespace must not be empty")
	}
	if strings.EqualFold(ns, reservedNamespace) {
		return x402err.New(x402err.NSForbidden, `namespace "x402" is reserved`)
	}
	return nil
}

func canonicalizeHeaders(reg *transport.Registry, headers []transport.HeaderEntry) ([]transport.HeaderEntry, error) {
	out := make([]transport.HeaderEntry, 0, len(headers))
	for _, h := range headers {
		name, err := canonicalizeName(reg, h.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, transport.HeaderEntry{Name: name, Value: h.Value, Extras: h.Extras})
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	for i := 1; i < len(out); i++ {
		if strings.EqualFold(out[i-1].Name, out[i].Name) {
			if transport.IsCoreName(out[i].Name) {
				return nil, x402err.New(x402err.MultipleCoreX402Headers, "duplicate core header name: "+out[i].Name)
			}
			return nil, x402err.New(x402err.X402ExtensionDuplicate, "duplicate header name: "+out[i].Name)
		}
	}
	return out, nil
}

func canonicalizeName(reg *transport.Registry, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if transport.IsCoreName(name) {
		if strings.EqualFold(name, transport.CoreHeaderPayment) {
			return transport.CoreHeaderPayment, nil
		}
		return transport.CoreHeaderPaymentResponse, nil
	}
	canonical, ok := reg.Canonical(name)
	if !ok {
		return "", x402err.New(x402err.X402ExtensionUnapproved, "header name not approved: "+name)
	}
	return canonical, nil
}

func checkBodyCollisions(body map[string]any, headers []transport.HeaderEntry) error {
	names := make(map[string]bool, len(headers))
	for _, h := range headers {
		names[strings.ToLower(h.Name)] = true
	}
	for key := range body {
		if names[strings.ToLower(key)] {
			return x402err.New(x402err.BodyHeaderNameCollision, "body key collides with header name: "+key)
		}
	}
	return nil
}

// headersToCanonicalJSON serializes the sorted header list as a JSON array
// of {name, value, extras} objects, then canonicalizes the whole array so
// nested object keys sort too.
func headersToCanonicalJSON(headers []transport.HeaderEntry) ([]byte, error) {
	arr := make([]any, 0, len(headers))
	for _, h := range headers {
		extras := h.Extras
		if extras == nil {
			extras = map[string]any{}
		}
		arr = append(arr, map[string]any{
			"name":   h.Name,
			"value":  toAnyMap(h.Value),
			"extras": toAnyMap(extras),
		})
	}
	return canon.Canonicalize(arr)
}

func toAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ParseSegments splits AAD text into its four pipe-separated segments, as
// the open path must when reconstructing headers/body from an envelope's
// `aad` field (spec §4.5 open step 10). Returns an error if fewer than four
// segments result — the "legacy v1-vs-v2" detection described in spec §9
// is intentionally not implemented; a caller targeting the legacy format
// must add that branch itself.
func ParseSegments(aadText string) (ns, ver, headersJSON, bodyJSON string, err error) {
	parts := strings.SplitN(aadText, "|", 4)
	if len(parts) < 4 {
		return "", "", "", "", x402err.New(x402err.InvalidEnvelope, "AAD does not split into at least four segments")
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}
