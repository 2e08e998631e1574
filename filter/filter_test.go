package filter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	websec "github.com/halcyonsec/websec-go"
)

// mockResolver implements SubjectResolver
type mockResolver struct {
	subject *websec.Subject
	err     error
	calls   int
}

func (m *mockResolver) Resolve(_ context.Context, _ websec.Hints) (*websec.Subject, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.subject, nil
}

func authedSubject(roles ...string) *websec.Subject {
	s, _ := websec.NewSubject(&websec.Principal{ID: "u1"}, roles, "sess1")
	return s
}

func standardChain(resolver SubjectResolver) *Chain {
	return NewStandardChain(
		[]string{"/health", "/public/*"},
		resolver,
		[]RouteRoles{
			{Pattern: "/admin/*", Roles: []string{"admin"}},
			{Pattern: "/reports", Roles: []string{"admin", "analyst"}},
		},
	)
}

func TestChain_AnonymousPath_AllowedWithoutResolve(t *testing.T) {
	resolver := &mockResolver{subject: websec.AnonymousSubject()}
	chain := standardChain(resolver)

	d := chain.Apply(context.Background(), &Request{Path: "/health"})
	if !d.Allowed() {
		t.Fatal("expected Allow for anonymous path")
	}
	if resolver.calls != 0 {
		t.Errorf("anonymous path must not trigger Resolve, got %d calls", resolver.calls)
	}

	d = chain.Apply(context.Background(), &Request{Path: "/public/docs/index.html"})
	if !d.Allowed() {
		t.Error("expected Allow for wildcard anonymous path")
	}
}

func TestChain_FailClosed(t *testing.T) {
	// no anonymous match, no session, no credential: must be denied
	resolver := &mockResolver{subject: websec.AnonymousSubject()}
	chain := standardChain(resolver)

	d := chain.Apply(context.Background(), &Request{Path: "/api/things"})
	if !d.Denied() {
		t.Fatal("expected Deny for unauthenticated request")
	}
	if d.Reason() != ReasonUnauthenticated {
		t.Errorf("expected unauthenticated reason, got %v", d.Reason())
	}
}

func TestChain_EmptyChainDenies(t *testing.T) {
	chain := NewChain(nil)
	d := chain.Apply(context.Background(), &Request{Path: "/anything"})
	if !d.Denied() {
		t.Fatal("exhausted chain must deny, never allow by default")
	}
}

func TestChain_AuthenticatedAllowed(t *testing.T) {
	resolver := &mockResolver{subject: authedSubject("reader")}
	chain := standardChain(resolver)

	req := &Request{Path: "/api/things"}
	d := chain.Apply(context.Background(), req)
	if !d.Allowed() {
		t.Fatalf("expected Allow, got %+v", d)
	}
	if req.Subject == nil || !req.Subject.Authenticated {
		t.Error("expected subject attached to the request")
	}
}

func TestChain_RoleRequired(t *testing.T) {
	admin := &mockResolver{subject: authedSubject("admin")}
	reader := &mockResolver{subject: authedSubject("reader")}

	d := standardChain(admin).Apply(context.Background(), &Request{Path: "/admin/users"})
	if !d.Allowed() {
		t.Error("expected Allow for admin on /admin/*")
	}

	d = standardChain(reader).Apply(context.Background(), &Request{Path: "/admin/users"})
	if !d.Denied() || d.Reason() != ReasonForbidden {
		t.Errorf("expected Deny(forbidden) for reader on /admin/*, got %+v", d)
	}

	// any-of semantics
	analyst := &mockResolver{subject: authedSubject("analyst")}
	d = standardChain(analyst).Apply(context.Background(), &Request{Path: "/reports"})
	if !d.Allowed() {
		t.Error("expected Allow for analyst on /reports")
	}
}

func TestChain_RealmUnavailable_DeniesRetryable(t *testing.T) {
	resolver := &mockResolver{err: fmt.Errorf("provider down: %w", websec.ErrRealmUnavailable)}
	chain := standardChain(resolver)

	d := chain.Apply(context.Background(), &Request{Path: "/api/things"})
	if !d.Denied() {
		t.Fatal("expected Deny")
	}
	if d.Reason() != ReasonUnavailable {
		t.Errorf("expected unavailable reason, distinct from 401, got %v", d.Reason())
	}
}

func TestChain_UnexpectedError_FailsClosed(t *testing.T) {
	resolver := &mockResolver{err: errors.New("boom")}
	chain := standardChain(resolver)

	d := chain.Apply(context.Background(), &Request{Path: "/api/things"})
	if !d.Denied() {
		t.Fatal("unexpected errors must deny, never allow")
	}
}

func TestChain_PreresolvedSubjectReused(t *testing.T) {
	resolver := &mockResolver{subject: authedSubject()}
	chain := standardChain(resolver)

	pre := authedSubject("admin")
	req := &Request{Path: "/admin/users", Subject: pre}
	d := chain.Apply(context.Background(), req)
	if !d.Allowed() {
		t.Fatalf("expected Allow, got %+v", d)
	}
	if resolver.calls != 0 {
		t.Errorf("pre-resolved subject must not trigger Resolve, got %d calls", resolver.calls)
	}
}

func TestRoleHandler_NoRouteEntry_Allows(t *testing.T) {
	h := NewRoleHandler(nil)
	req := &Request{Path: "/api/things", Subject: authedSubject()}
	d, err := h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !d.Allowed() {
		t.Error("no role requirement must allow an authenticated subject")
	}
}

func TestMatchPath(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/health", "/health", true},
		{"/health", "/healthz", false},
		{"/public/*", "/public/a/b", true},
		{"/public/*", "/public/", true},
		{"/public/*", "/private/a", false},
		{"*", "/anything", true},
	}
	for _, c := range cases {
		if got := matchPath(c.pattern, c.path); got != c.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestDenyReason_String(t *testing.T) {
	if ReasonUnauthenticated.String() != "unauthenticated" ||
		ReasonForbidden.String() != "forbidden" ||
		ReasonUnavailable.String() != "unavailable" {
		t.Error("unexpected reason strings")
	}
}
