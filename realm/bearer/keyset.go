package bearer

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	websec "github.com/halcyonsec/websec-go"
)

// KeySet resolves RSA verification keys from a JWKS endpoint (RFC 7517),
// caching them locally so token verification stays in-process. Any
// OIDC-compliant issuer's jwks_uri works.
type KeySet struct {
	jwksURL         string
	httpClient      *http.Client
	refreshInterval time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid → public key
	lastFetch time.Time
}

// KeySetOption configures a KeySet.
type KeySetOption func(*KeySet)

// WithKeySetHTTPClient sets a custom HTTP client for JWKS fetches.
func WithKeySetHTTPClient(c *http.Client) KeySetOption {
	return func(k *KeySet) { k.httpClient = c }
}

// WithRefreshInterval sets how often cached keys are refreshed.
// Default: 1 hour.
func WithRefreshInterval(d time.Duration) KeySetOption {
	return func(k *KeySet) { k.refreshInterval = d }
}

// NewKeySet creates a key set over the given JWKS URL. Keys are fetched
// lazily on first use.
func NewKeySet(jwksURL string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		jwksURL:         jwksURL,
		httpClient:      http.DefaultClient,
		refreshInterval: time.Hour,
		keys:            make(map[string]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// NewJWKS creates a bearer-token realm verifying RS256 signatures against
// the issuer's JWKS endpoint.
func NewJWKS(jwksURL string, opts ...KeySetOption) *Realm {
	ks := NewKeySet(jwksURL, opts...)
	return New(ks.Keyfunc, WithValidMethods(jwt.SigningMethodRS256.Alg()))
}

// Keyfunc is a jwt.Keyfunc resolving the token's kid against the cached
// key set, refreshing from the endpoint when the kid is unknown or the
// cache is stale.
func (k *KeySet) Keyfunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("bearer: unexpected signing method %v: %w", token.Header["alg"], websec.ErrAuthenticationFailed)
	}
	kid, _ := token.Header["kid"].(string)
	return k.get(context.Background(), kid)
}

func (k *KeySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, found := k.keys[kid]
	stale := time.Since(k.lastFetch) > k.refreshInterval
	k.mu.RUnlock()

	if found && !stale {
		return key, nil
	}

	if err := k.refresh(ctx); err != nil {
		if found {
			// a stale key beats no key
			return key, nil
		}
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	if kid == "" {
		for _, key := range k.keys {
			return key, nil
		}
	}
	return nil, fmt.Errorf("bearer: no key for kid %q: %w", kid, websec.ErrAuthenticationFailed)
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("bearer: create jwks request: %w", err)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bearer: fetch jwks: %v: %w", err, websec.ErrRealmUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bearer: jwks endpoint returned status %d: %w", resp.StatusCode, websec.ErrRealmUnavailable)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("bearer: decode jwks: %v: %w", err, websec.ErrRealmUnavailable)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue // skip malformed keys
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("bearer: jwks document holds no usable RSA signing keys: %w", websec.ErrRealmUnavailable)
	}

	k.mu.Lock()
	k.keys = keys
	k.lastFetch = time.Now()
	k.mu.Unlock()

	return nil
}

type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
