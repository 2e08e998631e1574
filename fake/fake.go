// Package fake wires a fully in-memory Manager for testing.
//
// Use fake.NewManager() in unit tests to avoid network calls and external
// dependencies: sessions live in memstore, and every declared user can
// authenticate with HTTP Basic.
package fake

import (
	"context"
	"sync"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/basicauth"
	"github.com/halcyonsec/websec-go/realm/local"
	"github.com/halcyonsec/websec-go/store/memstore"
)

// Option configures the fake manager.
type Option func(*state)

type state struct {
	order []string
	users map[string]*local.Account
	cfg   websec.Config
}

// WithUser declares a user allowed to authenticate with Basic credentials,
// holding the given roles.
func WithUser(name string, roles ...string) Option {
	return func(s *state) {
		if _, ok := s.users[name]; !ok {
			s.order = append(s.order, name)
		}
		s.users[name] = &local.Account{
			Authorization: basicauth.Encode(name),
			Principal:     &websec.Principal{ID: "user:" + name, Name: name},
			Roles:         roles,
		}
	}
}

// WithConfig overrides the manager configuration. The Basic expression is
// still derived from the declared users.
func WithConfig(cfg websec.Config) Option {
	return func(s *state) { s.cfg = cfg }
}

// NewManager creates a Manager wired entirely to in-memory components.
func NewManager(opts ...Option) (*websec.Manager, error) {
	s := &state{users: make(map[string]*local.Account)}
	for _, o := range opts {
		o(s)
	}

	cfg := s.cfg
	if len(s.order) > 0 {
		expr := "basic("
		for i, name := range s.order {
			if i > 0 {
				expr += ","
			}
			expr += name
		}
		expr += ")"
		cfg.BasicAuthExpression = expr
	}

	return websec.NewManager(cfg,
		websec.WithSessionStore(memstore.New()),
		websec.WithRealm(local.New(&directory{users: s.users})),
	)
}

// directory is an in-memory local.Directory.
type directory struct {
	mu    sync.RWMutex
	users map[string]*local.Account
}

func (d *directory) Lookup(_ context.Context, id string) (*local.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acct, ok := d.users[id]
	if !ok {
		return nil, local.ErrNotFound
	}
	return acct, nil
}
