// Package transport validates and normalizes a semantic x402 message (a
// transport type, its content, an optional HTTP status code, and optional
// extensions) into the (headerCore?, body, extensions[], httpResponseCode?)
// quadruple the AAD builder and envelope codec consume.
//
// The validation table is enforced at construction: tagged variants are not
// modeled as a language-level sum type (Go has no such feature without a
// sealed-interface workaround that would obscure the table this package
// implements), so Validate is the single entry point that enforces §4.2's
// rules and returns a *Normalized value that is only ever constructed when
// every rule has passed.
package transport

import (
	"strings"

	"github.com/x402hpke/envelope/internal/x402err"
)

// Type is the transport's semantic role.
type Type string

const (
	Payment         Type = "PAYMENT"
	PaymentResponse Type = "PAYMENT_RESPONSE"
	PaymentRequired Type = "PAYMENT_REQUIRED"
	OtherRequest    Type = "OTHER_REQUEST"
	OtherResponse   Type = "OTHER_RESPONSE"
)

// Extension is a caller-supplied extension header attached verbatim to a
// message; Name must resolve against the Registry.
type Extension struct {
	Name  string
	Value map[string]any
}

// HeaderEntry is a single header in the normalized headers list: a name,
// its JSON-object value, and any extra fields the caller attached (carried
// through untouched, not interpreted by the codec).
type HeaderEntry struct {
	Name   string
	Value  map[string]any
	Extras map[string]any
}

// Input is the (type, content, httpResponseCode?, extensions?) tuple callers
// provide to Validate.
type Input struct {
	Type             Type
	Content          map[string]any
	HTTPResponseCode *int
	Extensions       []Extension
}

// Normalized is the output of a successful Validate call.
type Normalized struct {
	HeaderCore                *HeaderEntry
	Body                      map[string]any
	Extensions                []HeaderEntry
	EffectiveHTTPResponseCode *int
	// Warning is non-empty exactly when PAYMENT_REQUIRED's httpResponseCode
	// was coerced to 402 from some other supplied value — the sole
	// coerce-with-warning case in the taxonomy (spec §7).
	Warning string
}

func intPtr(v int) *int { return &v }

// Validate enforces the §4.2 table and returns the normalized transport, or
// a *x402err.Error with exactly one taxonomized Kind.
func Validate(reg *Registry, in Input) (*Normalized, error) {
	out := &Normalized{}

	switch in.Type {
	case OtherRequest:
		if in.HTTPResponseCode != nil {
			return nil, x402err.New(x402err.OtherRequestHTTPCode, "OTHER_REQUEST must not carry an HTTP response code")
		}
		if err := requireObjectContent(in.Content); err != nil {
			return nil, err
		}
		out.Body = in.Content

	case OtherResponse:
		if in.HTTPResponseCode == nil || *in.HTTPResponseCode == 402 {
			return nil, x402err.New(x402err.OtherResponse402, "OTHER_RESPONSE requires a non-402 HTTP response code")
		}
		if err := requireObjectContent(in.Content); err != nil {
			return nil, err
		}
		out.Body = in.Content
		out.EffectiveHTTPResponseCode = in.HTTPResponseCode

	case PaymentRequired:
		if len(in.Content) == 0 {
			return nil, x402err.New(x402err.PaymentRequiredContent, "PAYMENT_REQUIRED requires non-empty content")
		}
		code := 402
		if in.HTTPResponseCode != nil && *in.HTTPResponseCode != 402 {
			out.Warning = "PAYMENT_REQUIRED httpResponseCode coerced to 402"
		}
		out.Body = in.Content
		out.EffectiveHTTPResponseCode = intPtr(code)

	case PaymentResponse:
		if len(in.Content) == 0 {
			return nil, x402err.New(x402err.PaymentResponseContent, "PAYMENT_RESPONSE requires non-empty content")
		}
		if in.HTTPResponseCode != nil && *in.HTTPResponseCode != 200 {
			return nil, x402err.New(x402err.PaymentResponseHTTPCode, "PAYMENT_RESPONSE httpResponseCode must be absent or 200")
		}
		out.HeaderCore = &HeaderEntry{Name: CoreHeaderPaymentResponse, Value: in.Content}
		out.Body = map[string]any{}
		out.EffectiveHTTPResponseCode = intPtr(200)

	case Payment:
		if in.HTTPResponseCode != nil {
			return nil, x402err.New(x402err.PaymentHTTPCode, "PAYMENT must not carry an HTTP response code")
		}
		if _, ok := in.Content["payload"]; !ok {
			return nil, x402err.New(x402err.PaymentPayload, `PAYMENT content must contain a "payload" key`)
		}
		out.HeaderCore = &HeaderEntry{Name: CoreHeaderPayment, Value: in.Content}
		out.Body = map[string]any{}

	default:
		return nil, x402err.New(x402err.InvalidEnvelope, "unknown transport type: "+string(in.Type))
	}

	exts, err := normalizeExtensions(reg, in.Extensions)
	if err != nil {
		return nil, err
	}
	out.Extensions = exts

	if err := checkBodyHeaderCollisions(out); err != nil {
		return nil, err
	}
	if err := checkAtMostOneCore(out); err != nil {
		return nil, err
	}

	return out, nil
}

func requireObjectContent(content map[string]any) error {
	if content == nil {
		return x402err.New(x402err.ContentObject, "content must be a JSON object")
	}
	return nil
}

func normalizeExtensions(reg *Registry, exts []Extension) ([]HeaderEntry, error) {
	seen := make(map[string]bool, len(exts))
	out := make([]HeaderEntry, 0, len(exts))
	for _, e := range exts {
		canonical, ok := reg.Canonical(e.Name)
		if !ok {
			return nil, x402err.New(x402err.X402ExtensionUnapproved, "extension header not in the approved registry: "+e.Name)
		}
		key := strings.ToLower(canonical)
		if seen[key] {
			return nil, x402err.New(x402err.X402ExtensionDuplicate, "duplicate extension header: "+canonical)
		}
		seen[key] = true
		if e.Value == nil {
			return nil, x402err.New(x402err.X402ExtensionPayload, "extension header value must be a JSON object: "+canonical)
		}
		out = append(out, HeaderEntry{Name: canonical, Value: e.Value})
	}
	return out, nil
}

func checkBodyHeaderCollisions(n *Normalized) error {
	headerNames := make(map[string]bool)
	if n.HeaderCore != nil {
		headerNames[strings.ToLower(n.HeaderCore.Name)] = true
	}
	for _, e := range n.Extensions {
		headerNames[strings.ToLower(e.Name)] = true
	}
	for key := range n.Body {
		if headerNames[strings.ToLower(key)] {
			return x402err.New(x402err.BodyHeaderNameCollision, "body key collides with header name: "+key)
		}
	}
	return nil
}

func checkAtMostOneCore(n *Normalized) error {
	count := 0
	if n.HeaderCore != nil {
		count++
	}
	for _, e := range n.Extensions {
		if IsCoreName(e.Name) {
			count++
		}
	}
	if count > 1 {
		return x402err.New(x402err.MultipleCoreX402Headers, "a message may carry at most one core x402 header")
	}
	return nil
}

// AllHeaders concatenates headerCore (if present) with the extensions, in
// the order the envelope codec and AAD builder expect: [headerCore?] ++
// extensions.
func (n *Normalized) AllHeaders() []HeaderEntry {
	headers := make([]HeaderEntry, 0, len(n.Extensions)+1)
	if n.HeaderCore != nil {
		headers = append(headers, *n.HeaderCore)
	}
	headers = append(headers, n.Extensions...)
	return headers
}
