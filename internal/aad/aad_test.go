package aad

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x402hpke/envelope/internal/transport"
	"github.com/x402hpke/envelope/internal/x402err"
)

func reg() *transport.Registry { return transport.NewRegistry() }

func TestBuildRejectsEmptyNamespace(t *testing.T) {
	_, err := Build("", reg(), nil, map[string]any{})
	require.Equal(t, x402err.NSForbidden, x402err.KindOf(err))
}

func TestBuildRejectsReservedNamespaceCaseInsensitive(t *testing.T) {
	for _, ns := range []string{"x402", "X402", "X402"} {
		_, err := Build(ns, reg(), nil, map[string]any{})
		require.Equal(t, x402err.NSForbidden, x402err.KindOf(err), "ns=%s", ns)
	}
}

func TestBuildIsDeterministicAcrossHeaderOrder(t *testing.T) {
	headers1 := []transport.HeaderEntry{
		{Name: "X-402-Routing", Value: map[string]any{"a": 1}},
		{Name: "X-402-Metadata", Value: map[string]any{"b": 2}},
	}
	headers2 := []transport.HeaderEntry{
		{Name: "X-402-Metadata", Value: map[string]any{"b": 2}},
		{Name: "X-402-Routing", Value: map[string]any{"a": 1}},
	}
	r1, err := Build("myapp", reg(), headers1, map[string]any{"x": 1})
	require.NoError(t, err)
	r2, err := Build("myapp", reg(), headers2, map[string]any{"x": 1})
	require.NoError(t, err)
	require.Equal(t, r1.Bytes, r2.Bytes)
}

func TestBuildRejectsBodyHeaderCollision(t *testing.T) {
	headers := []transport.HeaderEntry{{Name: "X-402-Routing", Value: map[string]any{}}}
	_, err := Build("myapp", reg(), headers, map[string]any{"x-402-routing": 1})
	require.Equal(t, x402err.BodyHeaderNameCollision, x402err.KindOf(err))
}

func TestBuildProducesFourPipeSegments(t *testing.T) {
	r, err := Build("myapp", reg(), nil, map[string]any{"a": 1})
	require.NoError(t, err)
	parts := strings.SplitN(string(r.Bytes), "|", 4)
	require.Len(t, parts, 4)
	require.Equal(t, "myapp", parts[0])
	require.Equal(t, "v1", parts[1])
	require.Equal(t, "[]", parts[2])
	require.Equal(t, `{"a":1}`, parts[3])
}

func TestBuildCanonicalizesCoreHeaderCasing(t *testing.T) {
	headers := []transport.HeaderEntry{{Name: "x-payment", Value: map[string]any{"payload": map[string]any{}}}}
	r, err := Build("myapp", reg(), headers, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, transport.CoreHeaderPayment, r.HeadersNormalized[0].Name)
}

func TestParseSegmentsRoundTrips(t *testing.T) {
	r, err := Build("myapp", reg(), nil, map[string]any{"a": 1})
	require.NoError(t, err)
	ns, ver, headersJSON, bodyJSON, err := ParseSegments(string(r.Bytes))
	require.NoError(t, err)
	require.Equal(t, "myapp", ns)
	require.Equal(t, "v1", ver)
	require.Equal(t, "[]", headersJSON)
	require.Equal(t, `{"a":1}`, bodyJSON)
}

func TestParseSegmentsRejectsFewerThanFourParts(t *testing.T) {
	_, _, _, _, err := ParseSegments("ns|v1")
	require.Equal(t, x402err.InvalidEnvelope, x402err.KindOf(err))
}
