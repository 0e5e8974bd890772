// Package streamchunk implements the streaming per-chunk AEAD sub-protocol:
// an exported-key XChaCha20-Poly1305 construction with monotonic sequence
// numbers, plus a stateful limiter guarding against unbounded chunk/byte
// counts. It is a parallel subsystem to the one-shot envelope codec and
// does not share its wire format.
package streamchunk

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/x402hpke/envelope/internal/x402err"
)

const noncePrefixLen = 16

// buildNonce assembles the 24-byte XChaCha20-Poly1305 nonce as
// noncePrefix16 || little-endian-u64(seq).
func buildNonce(prefix []byte, seq uint64) ([]byte, error) {
	if len(prefix) != noncePrefixLen {
		return nil, x402err.New(x402err.StreamNoncePrefixLen, "nonce prefix must be exactly 16 bytes")
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	copy(nonce, prefix)
	binary.LittleEndian.PutUint64(nonce[noncePrefixLen:], seq)
	return nonce, nil
}

// SealChunk encrypts one chunk with XChaCha20-Poly1305-IETF. Pure function;
// callers own sequence-number tracking.
func SealChunk(key, prefix []byte, seq uint64, plaintext, aad []byte) ([]byte, error) {
	nonce, err := buildNonce(prefix, seq)
	if err != nil {
		return nil, err
	}
	aeadCipher, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "constructing XChaCha20-Poly1305 AEAD", err)
	}
	return aeadCipher.Seal(nil, nonce, plaintext, aad), nil
}

// OpenChunk decrypts and authenticates one chunk. Opens are not metered by
// the limiter by default.
func OpenChunk(key, prefix []byte, seq uint64, ciphertext, aad []byte) ([]byte, error) {
	nonce, err := buildNonce(prefix, seq)
	if err != nil {
		return nil, err
	}
	aeadCipher, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, x402err.Wrap(x402err.InvalidEnvelope, "constructing XChaCha20-Poly1305 AEAD", err)
	}
	plaintext, err := aeadCipher.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, x402err.New(x402err.InvalidEnvelope, "chunk authentication failed")
	}
	return plaintext, nil
}

const (
	DefaultMaxChunks uint64 = 1_000_000
	DefaultMaxBytes  uint64 = 1_000_000_000
)

// Limiter is a stateful wrapper around SealChunk/OpenChunk that enforces
// maxChunks and maxBytes before encrypting, and tracks usage after a
// successful seal.
type Limiter struct {
	maxChunks uint64
	maxBytes  uint64
	chunkSeq  uint64
	chunksUsed uint64
	bytesUsed  uint64
}

// NewLimiter constructs a limiter with the given bounds. A zero value for
// either bound falls back to the protocol default.
func NewLimiter(maxChunks, maxBytes uint64) *Limiter {
	if maxChunks == 0 {
		maxChunks = DefaultMaxChunks
	}
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Limiter{maxChunks: maxChunks, maxBytes: maxBytes}
}

// Seal enforces the limits, then delegates to SealChunk using the next
// monotonic sequence number, advancing internal counters only on success.
func (l *Limiter) Seal(key, prefix []byte, plaintext, aad []byte) (ciphertext []byte, seq uint64, err error) {
	if l.chunksUsed+1 > l.maxChunks {
		return nil, 0, x402err.New(x402err.AEADLimit, "maxChunks exceeded")
	}
	if l.bytesUsed+uint64(len(plaintext)) > l.maxBytes {
		return nil, 0, x402err.New(x402err.AEADLimit, "maxBytes exceeded")
	}

	seq = l.chunkSeq
	ciphertext, err = SealChunk(key, prefix, seq, plaintext, aad)
	if err != nil {
		return nil, 0, err
	}
	l.chunksUsed++
	l.bytesUsed += uint64(len(plaintext))
	l.chunkSeq++
	return ciphertext, seq, nil
}

// Open delegates to OpenChunk. Exposed on Limiter for interface symmetry;
// opens are not metered by default.
func (l *Limiter) Open(key, prefix []byte, seq uint64, ciphertext, aad []byte) ([]byte, error) {
	return OpenChunk(key, prefix, seq, ciphertext, aad)
}

// ChunksUsed returns the number of chunks sealed so far.
func (l *Limiter) ChunksUsed() uint64 { return l.chunksUsed }

// BytesUsed returns the number of plaintext bytes sealed so far.
func (l *Limiter) BytesUsed() uint64 { return l.bytesUsed }
