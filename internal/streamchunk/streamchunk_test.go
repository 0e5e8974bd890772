package streamchunk

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x402hpke/envelope/internal/x402err"
)

func testKey() []byte  { return make([]byte, 32) }
func testPrefix() []byte {
	p := make([]byte, 16)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

func TestSealOpenChunkRoundtrip(t *testing.T) {
	key := testKey()
	prefix := testPrefix()
	ct, err := SealChunk(key, prefix, 0, []byte("hello"), []byte("aad"))
	require.NoError(t, err)
	pt, err := OpenChunk(key, prefix, 0, ct, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
}

func TestOpenChunkRejectsWrongSequence(t *testing.T) {
	key := testKey()
	prefix := testPrefix()
	ct, err := SealChunk(key, prefix, 0, []byte("hello"), nil)
	require.NoError(t, err)
	_, err = OpenChunk(key, prefix, 1, ct, nil)
	require.Error(t, err)
}

func TestSealChunkRejectsShortPrefix(t *testing.T) {
	key := testKey()
	_, err := SealChunk(key, make([]byte, 8), 0, []byte("hello"), nil)
	require.Equal(t, x402err.StreamNoncePrefixLen, x402err.KindOf(err))
}

func TestLimiterEnforcesMaxChunks(t *testing.T) {
	l := NewLimiter(2, 0)
	key := testKey()
	prefix := testPrefix()

	_, _, err := l.Seal(key, prefix, []byte("a"), nil)
	require.NoError(t, err)
	_, _, err = l.Seal(key, prefix, []byte("b"), nil)
	require.NoError(t, err)
	_, _, err = l.Seal(key, prefix, []byte("c"), nil)
	require.Equal(t, x402err.AEADLimit, x402err.KindOf(err))
}

func TestLimiterEnforcesMaxBytes(t *testing.T) {
	l := NewLimiter(0, 5)
	key := testKey()
	prefix := testPrefix()

	_, _, err := l.Seal(key, prefix, []byte("abcde"), nil)
	require.NoError(t, err)
	_, _, err = l.Seal(key, prefix, []byte("f"), nil)
	require.Equal(t, x402err.AEADLimit, x402err.KindOf(err))
}

func TestLimiterAssignsMonotonicSequence(t *testing.T) {
	l := NewLimiter(0, 0)
	key := testKey()
	prefix := testPrefix()

	_, seq0, err := l.Seal(key, prefix, []byte("a"), nil)
	require.NoError(t, err)
	_, seq1, err := l.Seal(key, prefix, []byte("b"), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq0)
	require.Equal(t, uint64(1), seq1)
}

func TestLimiterDefaultsApplyWhenZero(t *testing.T) {
	l := NewLimiter(0, 0)
	require.Equal(t, DefaultMaxChunks, l.maxChunks)
	require.Equal(t, DefaultMaxBytes, l.maxBytes)
}
