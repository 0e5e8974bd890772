package jwks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/x402err"
)

func TestFetchJWKSRejectsNonHTTPS(t *testing.T) {
	c := NewCache(time.Second, time.Minute)
	_, err := c.FetchJWKS(context.Background(), "http://example.com/jwks.json")
	require.Equal(t, x402err.JWKSHTTPSReq, x402err.KindOf(err))
}

func TestFetchJWKSRejectsEmptyURL(t *testing.T) {
	c := NewCache(time.Second, time.Minute)
	_, err := c.FetchJWKS(context.Background(), "")
	require.Equal(t, x402err.JWKSURLRequired, x402err.KindOf(err))
}

func TestSelectJWKReturnsMatchingKey(t *testing.T) {
	pub, _, err := jwk.GenerateKeyPair("kid-1")
	require.NoError(t, err)
	set := &Set{Keys: []*jwk.JWK{pub}}
	require.Equal(t, pub, SelectJWK(set, "kid-1"))
	require.Nil(t, SelectJWK(set, "missing"))
}

func TestCacheFetchesAndCachesUntilExpiry(t *testing.T) {
	pub, _, err := jwk.GenerateKeyPair("kid-1")
	require.NoError(t, err)
	set := Set{Keys: []*jwk.JWK{pub}}

	hits := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Cache-Control", "max-age=60")
		_ = json.NewEncoder(w).Encode(set)
	}))
	defer server.Close()

	c := NewCache(time.Second, time.Hour)
	c.httpClient = server.Client()

	_, err = c.FetchJWKS(context.Background(), server.URL)
	require.NoError(t, err)
	_, err = c.FetchJWKS(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, 1, hits)
}

func TestCacheClampsTTLToConfiguredBounds(t *testing.T) {
	c := NewCache(5*time.Second, 10*time.Second)
	require.Equal(t, 5*time.Second, c.clampTTL(time.Second))
	require.Equal(t, 10*time.Second, c.clampTTL(time.Hour))
	require.Equal(t, 7*time.Second, c.clampTTL(7*time.Second))
}

func TestFetchJWKSRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewCache(time.Second, time.Minute)
	c.httpClient = server.Client()
	_, err := c.FetchJWKS(context.Background(), server.URL)
	require.Equal(t, x402err.JWKSHTTPStatus, x402err.KindOf(err))
}

func TestSelectJWKErrorsWhenKidNotFound(t *testing.T) {
	pub, _, err := jwk.GenerateKeyPair("kid-1")
	require.NoError(t, err)
	set := Set{Keys: []*jwk.JWK{pub}}

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(set)
	}))
	defer server.Close()

	c := NewCache(time.Second, time.Minute)
	c.httpClient = server.Client()
	_, err = c.SelectJWK(context.Background(), server.URL, "not-present")
	require.Equal(t, x402err.JWKSKidInvalid, x402err.KindOf(err))
}
