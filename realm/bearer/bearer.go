// Package bearer provides a realm that verifies bearer tokens (JWT)
// locally, without calling out to a provider.
//
// The realm only verifies; it never signs or issues tokens. Key material
// comes in as a jwt.Keyfunc so static secrets, key sets and rotating keys
// all plug in the same way.
package bearer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	websec "github.com/halcyonsec/websec-go"
)

// Realm validates BearerCredential tokens with a jwt.Keyfunc.
type Realm struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

var _ websec.Realm = (*Realm)(nil)

// Option configures the Realm.
type Option func(*Realm)

// WithValidMethods restricts the accepted signing algorithms.
func WithValidMethods(methods ...string) Option {
	return func(r *Realm) {
		r.parser = jwt.NewParser(jwt.WithExpirationRequired(), jwt.WithValidMethods(methods))
	}
}

// New creates a bearer-token realm over the given key resolution function.
func New(keyfunc jwt.Keyfunc, opts ...Option) *Realm {
	r := &Realm{
		keyfunc: keyfunc,
		parser:  jwt.NewParser(jwt.WithExpirationRequired()),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewHMAC creates a bearer-token realm verifying HS256 signatures with a
// shared secret.
func NewHMAC(secret []byte) *Realm {
	return New(func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, WithValidMethods(jwt.SigningMethodHS256.Alg()))
}

// Kinds reports that this realm handles bearer tokens.
func (r *Realm) Kinds() []websec.CredentialKind {
	return []websec.CredentialKind{websec.KindBearer}
}

// Authenticate verifies the token's signature and expiry and maps its
// claims to a principal. Any verification failure, expiry included, is
// ErrAuthenticationFailed: a bad token is a bad credential, not an outage.
func (r *Realm) Authenticate(_ context.Context, cred websec.Credential) (*websec.AuthInfo, error) {
	bearer, ok := cred.(websec.BearerCredential)
	if !ok {
		return nil, fmt.Errorf("bearer: unsupported credential kind %q", cred.Kind())
	}

	token, err := r.parser.Parse(bearer.Token(), r.keyfunc)
	if err != nil {
		// A key set that cannot be fetched is an outage, not a bad token.
		if errors.Is(err, websec.ErrRealmUnavailable) {
			return nil, fmt.Errorf("bearer: %w", err)
		}
		return nil, fmt.Errorf("bearer: %v: %w", err, websec.ErrAuthenticationFailed)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("bearer: invalid token claims: %w", websec.ErrAuthenticationFailed)
	}

	return claimsToAuthInfo(claims)
}

func claimsToAuthInfo(m jwt.MapClaims) (*websec.AuthInfo, error) {
	sub, _ := m["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("bearer: token has no subject: %w", websec.ErrAuthenticationFailed)
	}

	principal := &websec.Principal{ID: sub, Attributes: map[string]string{}}
	if name, ok := m["name"].(string); ok {
		principal.Name = name
	}
	if iss, ok := m["iss"].(string); ok {
		principal.Attributes["issuer"] = iss
	}
	if exp, ok := m["exp"].(float64); ok {
		principal.Attributes["expires_at"] = time.Unix(int64(exp), 0).UTC().Format(time.RFC3339)
	}

	var roles []string
	if raw, ok := m["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}

	return &websec.AuthInfo{Principal: principal, Roles: roles}, nil
}
