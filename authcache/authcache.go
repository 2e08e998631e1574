// Package authcache caches successful realm authentications with a TTL so
// repeated presentations of the same credential skip the backend.
//
// The cache implements websec.CacheInvalidator: wiring the same instance
// into the Manager guarantees a logout or privilege change evicts every
// cached entry for that principal. Failures are never cached.
package authcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/metrics"
)

// Realm decorates another realm with a TTL'd authentication cache.
type Realm struct {
	inner   websec.Realm
	cache   *gocache.Cache
	metrics *metrics.Metrics
}

var (
	_ websec.Realm            = (*Realm)(nil)
	_ websec.CacheInvalidator = (*Realm)(nil)
)

// Option configures the caching realm.
type Option func(*Realm)

// WithMetrics sets the metrics recorder for hit/miss counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Realm) { r.metrics = m }
}

// New wraps a realm with a cache holding entries for ttl.
func New(inner websec.Realm, ttl time.Duration, opts ...Option) *Realm {
	r := &Realm{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New(false)
	}
	return r
}

// Kinds reports the inner realm's kinds.
func (r *Realm) Kinds() []websec.CredentialKind {
	return r.inner.Kinds()
}

// Authenticate answers from the cache when the same credential was recently
// validated, delegating to the inner realm otherwise.
func (r *Realm) Authenticate(ctx context.Context, cred websec.Credential) (*websec.AuthInfo, error) {
	key := cacheKey(cred)

	if v, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheHit("realm")
		return v.(*websec.AuthInfo), nil
	}
	r.metrics.RecordCacheMiss("realm")

	info, err := r.inner.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, info)
	return info, nil
}

// Invalidate evicts every cached entry belonging to the subject's
// principal. A subject with no principal, or one with nothing cached, is a
// no-op.
func (r *Realm) Invalidate(_ context.Context, subject *websec.Subject) error {
	if subject == nil || subject.Principal == nil {
		return nil
	}
	for key, item := range r.cache.Items() {
		info, ok := item.Object.(*websec.AuthInfo)
		if !ok || info.Principal == nil {
			continue
		}
		if info.Principal.ID == subject.Principal.ID {
			r.cache.Delete(key)
		}
	}
	return nil
}

// cacheKey fingerprints the credential material. Raw material never serves
// as a map key.
func cacheKey(cred websec.Credential) string {
	var material string
	switch c := cred.(type) {
	case websec.BasicCredential:
		material = c.Authorization()
	case websec.RemoteToken:
		material = fmt.Sprintf("%d/%s", c.Platform(), c.AccessToken())
	case websec.BearerCredential:
		material = c.Token()
	default:
		material = fmt.Sprintf("%#v", cred)
	}
	sum := sha256.Sum256([]byte(string(cred.Kind()) + ":" + material))
	return hex.EncodeToString(sum[:])
}
