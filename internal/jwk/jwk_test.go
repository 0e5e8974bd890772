package jwk

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x402hpke/envelope/internal/x402err"
)

func TestGenerateKeyPairProducesValidJWKs(t *testing.T) {
	pub, priv, err := GenerateKeyPair("kid-1")
	require.NoError(t, err)
	require.NoError(t, pub.Validate())
	require.NoError(t, priv.Validate())
	require.Equal(t, pub.X, priv.X)
}

func TestFromSeedIsDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	pub1, priv1, err := FromSeed(seed, "kid")
	require.NoError(t, err)
	pub2, priv2, err := FromSeed(seed, "kid")
	require.NoError(t, err)
	require.Equal(t, pub1.X, pub2.X)
	require.Equal(t, priv1.D, priv2.D)
}

func TestValidateRejectsWrongKty(t *testing.T) {
	pub, _, err := GenerateKeyPair("kid")
	require.NoError(t, err)
	pub.Kty = "RSA"
	require.Equal(t, x402err.JWKSKeyInvalid, x402err.KindOf(pub.Validate()))
}

func TestValidateRejectsWrongCrv(t *testing.T) {
	pub, _, err := GenerateKeyPair("kid")
	require.NoError(t, err)
	pub.Crv = "Ed25519"
	require.Equal(t, x402err.JWKSKeyInvalid, x402err.KindOf(pub.Validate()))
}

func TestValidateRejectsBadUse(t *testing.T) {
	pub, _, err := GenerateKeyPair("kid")
	require.NoError(t, err)
	pub.Use = "sig"
	require.Equal(t, x402err.JWKSKeyUseInval, x402err.KindOf(pub.Validate()))
}

func TestValidateRejectsShortX(t *testing.T) {
	pub, _, err := GenerateKeyPair("kid")
	require.NoError(t, err)
	pub.X = "AA"
	require.Equal(t, x402err.JWKSKeyInvalid, x402err.KindOf(pub.Validate()))
}

func TestValidateKidRequiresNonEmpty(t *testing.T) {
	pub, _, err := GenerateKeyPair("")
	require.NoError(t, err)
	require.Equal(t, x402err.JWKSKidInvalid, x402err.KindOf(pub.ValidateKid()))
}
