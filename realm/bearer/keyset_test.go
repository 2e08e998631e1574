package bearer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	websec "github.com/halcyonsec/websec-go"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	doc := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"use": "sig",
			"kid": kid,
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWKSRealm_Authenticate(t *testing.T) {
	key := newRSAKey(t)
	srv := jwksServer(t, "key-1", &key.PublicKey)
	defer srv.Close()

	tok := signRS256(t, key, "key-1", jwt.MapClaims{
		"sub":   "user-9",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []interface{}{"user"},
	})

	r := NewJWKS(srv.URL)
	info, err := r.Authenticate(context.Background(), websec.NewBearerCredential(tok))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Principal.ID != "user-9" {
		t.Errorf("expected principal user-9, got %s", info.Principal.ID)
	}
}

func TestJWKSRealm_UnknownKey(t *testing.T) {
	key := newRSAKey(t)
	other := newRSAKey(t)
	srv := jwksServer(t, "key-1", &key.PublicKey)
	defer srv.Close()

	tok := signRS256(t, other, "key-unknown", jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	r := NewJWKS(srv.URL)
	_, err := r.Authenticate(context.Background(), websec.NewBearerCredential(tok))
	if !errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for unknown kid, got %v", err)
	}
}

func TestJWKSRealm_EndpointDown(t *testing.T) {
	key := newRSAKey(t)
	srv := jwksServer(t, "key-1", &key.PublicKey)
	srv.Close() // nothing listening anymore

	tok := signRS256(t, key, "key-1", jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	r := NewJWKS(srv.URL)
	_, err := r.Authenticate(context.Background(), websec.NewBearerCredential(tok))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable when the key set is unreachable, got %v", err)
	}
}

func TestKeySet_CachesAcrossCalls(t *testing.T) {
	key := newRSAKey(t)

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"kid": "key-1",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	r := NewJWKS(srv.URL)
	for i := 0; i < 3; i++ {
		tok := signRS256(t, key, "key-1", jwt.MapClaims{
			"sub": "user-9",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		if _, err := r.Authenticate(context.Background(), websec.NewBearerCredential(tok)); err != nil {
			t.Fatalf("Authenticate #%d: %v", i, err)
		}
	}
	if fetches != 1 {
		t.Errorf("expected one JWKS fetch, got %d", fetches)
	}
}
