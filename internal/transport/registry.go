package transport

import "strings"

// Core header names. Input matching is case-insensitive; canonical casing
// is always what's stored and what appears on the wire.
const (
	CoreHeaderPayment         = "X-Payment"
	CoreHeaderPaymentResponse = "X-Payment-Response"
)

// defaultApproved is the fixed registry of extension header names a
// production deployment ships with. Per the Design Notes on the mutable
// global registry, this is never mutated at runtime; a Registry is an
// immutable, per-instance value built once at startup.
var defaultApproved = []string{
	"X-402-Routing",
	"X-402-Limits",
	"X-402-Acceptable",
	"X-402-Metadata",
	"X-402-Security",
}

// Registry is the approved set of extension header names, matched
// case-insensitively with canonical casing preserved. Build one with
// NewRegistry; it is immutable after construction and safe for concurrent
// read-only use.
type Registry struct {
	canonical map[string]string // lowercase -> canonical casing
}

// NewRegistry builds a Registry from the fixed default set plus any extra
// names the caller wants approved for this instance (e.g. from
// config.ExtensionConfig.ExtraApproved). It never mutates a shared global.
func NewRegistry(extra ...string) *Registry {
	r := &Registry{canonical: make(map[string]string, len(defaultApproved)+len(extra))}
	for _, name := range defaultApproved {
		r.canonical[strings.ToLower(name)] = name
	}
	for _, name := range extra {
		if name == "" {
			continue
		}
		r.canonical[strings.ToLower(name)] = name
	}
	return r
}

// Canonical returns the canonical casing for name and whether it is
// approved.
func (r *Registry) Canonical(name string) (string, bool) {
	c, ok := r.canonical[strings.ToLower(name)]
	return c, ok
}

// IsCoreName reports whether name matches one of the fixed core header
// names, case-insensitively.
func IsCoreName(name string) bool {
	lower := strings.ToLower(name)
	return lower == strings.ToLower(CoreHeaderPayment) || lower == strings.ToLower(CoreHeaderPaymentResponse)
}
