package keystore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/require"

	"github.com/x402hpke/envelope/internal/jwk"
)

// fakeKMS is an in-memory stand-in for a real KMS client: "encryption" is
// an identity transform tagged with the key ID, just enough to exercise
// the Store's request/response wiring without a network call.
type fakeKMS struct {
	keyID string
}

func (f *fakeKMS) Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	return &kms.EncryptOutput{
		CiphertextBlob: append([]byte(nil), params.Plaintext...),
		KeyId:          aws.String(f.keyID),
	}, nil
}

func (f *fakeKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	return &kms.DecryptOutput{
		Plaintext: append([]byte(nil), params.CiphertextBlob...),
		KeyId:     params.KeyId,
	}, nil
}

func TestSealOpenRoundtrip(t *testing.T) {
	pub, priv, err := jwk.GenerateKeyPair("kid-1")
	require.NoError(t, err)
	_ = pub

	store := New(&fakeKMS{keyID: "alias/test-key"}, "alias/test-key")

	ciphertext, kmsKeyID, err := store.Seal(context.Background(), priv)
	require.NoError(t, err)
	require.Equal(t, "alias/test-key", kmsKeyID)

	recovered, err := store.Open(context.Background(), ciphertext, kmsKeyID)
	require.NoError(t, err)
	require.Equal(t, priv.X, recovered.X)
	require.Equal(t, priv.D, recovered.D)
}

func TestSealRejectsInvalidJWK(t *testing.T) {
	store := New(&fakeKMS{keyID: "alias/test-key"}, "alias/test-key")
	bad := &jwk.JWK{Kty: "RSA"}
	_, _, err := store.Seal(context.Background(), bad)
	require.Error(t, err)
}
