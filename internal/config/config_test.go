package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateProductionRequiresNamespace(t *testing.T) {
	cfg := validProductionConfig()
	cfg.Namespace = NamespaceConfig{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when namespace is unset")
	}
	if !strings.Contains(err.Error(), "X402HPKE_NAMESPACE is required") {
		t.Fatalf("expected namespace validation error, got: %v", err)
	}
}

func TestValidateRejectsReservedNamespaceCaseInsensitive(t *testing.T) {
	cfg := validProductionConfig()
	cfg.Namespace = NamespaceConfig{NS: "X402"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for reserved namespace")
	}
	if !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected reserved-namespace error, got: %v", err)
	}
}

func TestValidateProductionRequiresKMS(t *testing.T) {
	cfg := validProductionConfig()
	cfg.KMS = KMSConfig{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when KMS is unconfigured in production")
	}
	if !strings.Contains(err.Error(), "KMS_REGION") || !strings.Contains(err.Error(), "KMS_KEY_ID") {
		t.Fatalf("expected both KMS errors, got: %v", err)
	}
}

func TestValidateDevelopmentToleratesMissingKMS(t *testing.T) {
	cfg := &Config{
		Environment: EnvDevelopment,
		Namespace:   NamespaceConfig{NS: "myapp"},
		JWKS:        JWKSConfig{MinTTL: time.Minute, MaxTTL: time.Hour},
		Streaming:   StreamingConfig{MaxChunks: 1000, MaxBytes: 1000},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected validation to pass in development without KMS, got: %v", err)
	}
}

func TestValidateRejectsInvertedJWKSTTLBounds(t *testing.T) {
	cfg := validProductionConfig()
	cfg.JWKS = JWKSConfig{MinTTL: time.Hour, MaxTTL: time.Minute}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for inverted JWKS TTL bounds")
	}
	if !strings.Contains(err.Error(), "X402HPKE_JWKS_MAX_TTL") {
		t.Fatalf("expected JWKS TTL bound error, got: %v", err)
	}
}

func TestLoadExtraExtensionsSplitsAndTrims(t *testing.T) {
	t.Setenv("X402HPKE_EXTRA_EXTENSIONS", "X-Custom-A, X-Custom-B,X-Custom-C")

	got := getEnvSlice("X402HPKE_EXTRA_EXTENSIONS", nil)
	want := []string{"X-Custom-A", "X-Custom-B", "X-Custom-C"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func validProductionConfig() *Config {
	return &Config{
		Environment: EnvProduction,
		Namespace:   NamespaceConfig{NS: "myapp"},
		JWKS:        JWKSConfig{MinTTL: time.Minute, MaxTTL: time.Hour},
		KMS: KMSConfig{
			Region: "us-east-1",
			KeyID:  "alias/x402hpke-recipient-keys",
		},
		Streaming: StreamingConfig{MaxChunks: 1_000_000, MaxBytes: 1_000_000_000},
	}
}
