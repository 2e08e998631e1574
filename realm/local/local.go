// Package local provides a directory-backed realm for Basic credentials.
//
// Validation logic lives here; persistence is behind the Directory
// interface so a SQL table, an LDAP tree or an in-memory map all plug in
// the same way.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/basicauth"
)

// ErrNotFound is returned by Directory implementations for unknown ids.
var ErrNotFound = errors.New("local: account not found")

// Account is the stored material for one principal.
type Account struct {
	// Authorization is the stored encoded credential, compared exactly
	// against the presented one.
	Authorization string

	Principal *websec.Principal
	Roles     []string
}

// Directory is the pluggable account lookup backend.
type Directory interface {
	// Lookup returns the account for the given principal identifier, or
	// ErrNotFound. Any other error is treated as a backend outage.
	Lookup(ctx context.Context, id string) (*Account, error)
}

// Realm validates Basic credentials against a Directory.
type Realm struct {
	dir    Directory
	logger *slog.Logger
}

var _ websec.Realm = (*Realm)(nil)

// Option configures the Realm.
type Option func(*Realm)

// WithLogger sets a structured logger for the realm.
func WithLogger(l *slog.Logger) Option {
	return func(r *Realm) { r.logger = l }
}

// New creates a directory-backed realm.
func New(dir Directory, opts ...Option) *Realm {
	r := &Realm{dir: dir}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Kinds reports that this realm handles Basic credentials.
func (r *Realm) Kinds() []websec.CredentialKind {
	return []websec.CredentialKind{websec.KindBasic}
}

// Authenticate decodes the presented authorization to a principal
// identifier, looks the account up and compares stored against presented
// material. Unknown ids and mismatches are both ErrAuthenticationFailed;
// the caller cannot tell them apart.
func (r *Realm) Authenticate(ctx context.Context, cred websec.Credential) (*websec.AuthInfo, error) {
	basic, ok := cred.(websec.BasicCredential)
	if !ok {
		return nil, fmt.Errorf("local: unsupported credential kind %q", cred.Kind())
	}

	id, err := basicauth.Decode(basic.Authorization())
	if err != nil {
		return nil, fmt.Errorf("local: %v: %w", err, websec.ErrAuthenticationFailed)
	}

	acct, err := r.dir.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("local: unknown principal: %w", websec.ErrAuthenticationFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("local: directory lookup: %v: %w", err, websec.ErrRealmUnavailable)
	}

	if acct.Authorization != basic.Authorization() {
		return nil, fmt.Errorf("local: credential mismatch: %w", websec.ErrAuthenticationFailed)
	}

	return &websec.AuthInfo{Principal: acct.Principal, Roles: acct.Roles}, nil
}
