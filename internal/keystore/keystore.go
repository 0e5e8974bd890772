// Package keystore provides optional AWS KMS envelope encryption of a
// recipient's private JWK for at-rest storage. It sits outside the
// seal/open hot path — it never participates in HKDF or AEAD derivation,
// only in protecting the private key material between uses.
package keystore

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/x402err"
)

// KMSAPI is the subset of the KMS client the keystore depends on, narrowed
// for testability.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Store seals and opens private JWKs against a single configured KMS key.
type Store struct {
	client KMSAPI
	keyID  string
}

// New builds a Store backed by the given KMS client and key ID/ARN/alias.
func New(client KMSAPI, keyID string) *Store {
	return &Store{client: client, keyID: keyID}
}

// NewFromRegion builds a Store using the default AWS credential chain for
// the given region, for callers that don't already hold a configured KMS
// client.
func NewFromRegion(ctx context.Context, region, keyID string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, x402err.Wrap(x402err.JWKSKeyInvalid, "loading default AWS config", err)
	}
	return New(kms.NewFromConfig(cfg), keyID), nil
}

// Seal encrypts a private JWK's JSON representation under the store's KMS
// key, returning the ciphertext and the key ID used.
func (s *Store) Seal(ctx context.Context, key *jwk.JWK) (ciphertext []byte, kmsKeyID string, err error) {
	if err := key.Validate(); err != nil {
		return nil, "", err
	}
	plaintext, err := json.Marshal(key)
	if err != nil {
		return nil, "", x402err.Wrap(x402err.JWKSKeyInvalid, "marshaling JWK for KMS encryption", err)
	}

	out, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:               aws.String(s.keyID),
		Plaintext:           plaintext,
		EncryptionAlgorithm: types.EncryptionAlgorithmSpecSymmetricDefault,
	})
	if err != nil {
		return nil, "", x402err.Wrap(x402err.JWKSKeyInvalid, "KMS encrypt failed", err)
	}
	return out.CiphertextBlob, aws.ToString(out.KeyId), nil
}

// Open decrypts a ciphertext produced by Seal back into a private JWK,
// verifying it round-trips to a well-formed key before returning it.
func (s *Store) Open(ctx context.Context, ciphertext []byte, kmsKeyID string) (*jwk.JWK, error) {
	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          aws.String(kmsKeyID),
	})
	if err != nil {
		return nil, x402err.Wrap(x402err.JWKSKeyInvalid, "KMS decrypt failed", err)
	}

	var key jwk.JWK
	if err := json.Unmarshal(out.Plaintext, &key); err != nil {
		return nil, x402err.Wrap(x402err.JWKSKeyInvalid, "unmarshaling decrypted JWK", err)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &key, nil
}
