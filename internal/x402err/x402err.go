// Package x402err defines the closed error taxonomy for the x402 HPKE
// envelope codec. Every rejection the codec can produce maps to exactly one
// Kind; callers that need actionable diagnostics type-assert to *Error and
// inspect Kind() rather than matching on error strings.
package x402err

import "fmt"

// Kind is a closed taxonomy tag. New kinds are added here, never invented
// ad hoc at call sites.
type Kind string

const (
	// Configuration / validation
	NSForbidden      Kind = "NS_FORBIDDEN"
	NSMismatch       Kind = "NS_MISMATCH"
	JWKSURLRequired  Kind = "JWKS_URL_REQUIRED"
	JWKSHTTPSReq     Kind = "JWKS_HTTPS_REQUIRED"
	JWKSHTTPStatus   Kind = "JWKS_HTTP_STATUS"
	JWKSInvalid      Kind = "JWKS_INVALID"
	JWKSKeyInvalid   Kind = "JWKS_KEY_INVALID"
	JWKSKeyUseInval  Kind = "JWKS_KEY_USE_INVALID"
	JWKSKidInvalid   Kind = "JWKS_KID_INVALID"

	// Transport model
	OtherRequestHTTPCode     Kind = "OTHER_REQUEST_HTTP_CODE"
	OtherResponse402         Kind = "OTHER_RESPONSE_402"
	PaymentRequiredContent   Kind = "PAYMENT_REQUIRED_CONTENT"
	PaymentResponseContent   Kind = "PAYMENT_RESPONSE_CONTENT"
	PaymentResponseHTTPCode  Kind = "PAYMENT_RESPONSE_HTTP_CODE"
	PaymentHTTPCode          Kind = "PAYMENT_HTTP_CODE"
	PaymentPayload           Kind = "PAYMENT_PAYLOAD"
	ContentObject            Kind = "CONTENT_OBJECT"
	X402ExtensionUnapproved  Kind = "X402_EXTENSION_UNAPPROVED"
	X402ExtensionDuplicate   Kind = "X402_EXTENSION_DUPLICATE"
	X402ExtensionPayload     Kind = "X402_EXTENSION_PAYLOAD"
	BodyHeaderNameCollision  Kind = "BODY_HEADER_NAME_COLLISION"
	MultipleCoreX402Headers  Kind = "MULTIPLE_CORE_X402_HEADERS"

	// KEM/KDF
	ECDHLowOrder Kind = "ECDH_LOW_ORDER"

	// AEAD/envelope
	AEADUnsupported      Kind = "AEAD_UNSUPPORTED"
	AEADMismatch         Kind = "AEAD_MISMATCH"
	InvalidEnvelope      Kind = "INVALID_ENVELOPE"
	KIDMismatch          Kind = "KID_MISMATCH"
	AEADLimit            Kind = "AEAD_LIMIT"
	StreamNoncePrefixLen Kind = "STREAM_NONCE_PREFIX_LEN"

	// Sidecar verification
	AADMismatch        Kind = "AAD_MISMATCH"
	PublicKeyNotInAAD Kind = "PUBLIC_KEY_NOT_IN_AAD"

	// Canonicalization
	NotJSONSerializable Kind = "NOT_JSON_SERIALIZABLE"
)

// Error is the concrete error type every codec rejection is wrapped in. It
// carries a taxonomized Kind alongside the usual wrapped cause so callers
// can branch on Kind() without parsing strings, while fmt.Errorf callers up
// the stack still see a sensible Error() string.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates a taxonomized error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap creates a taxonomized error wrapping a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the taxonomized error kind.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from any error produced by this package, or the
// empty Kind if err does not carry one.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.kind
	}
	return ""
}

// Is reports whether err carries the given Kind. It supports wrapped errors
// via errors.As semantics implemented manually to avoid importing "errors"
// just for a single As call chain in callers.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
