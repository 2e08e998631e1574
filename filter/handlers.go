package filter

import (
	"context"
)

// AnonymousHandler admits requests whose path matches a configured
// anonymous-allowed pattern; everything else is delegated down the chain.
type AnonymousHandler struct {
	patterns []string
}

// NewAnonymousHandler builds the handler over a read-only pattern table.
func NewAnonymousHandler(patterns []string) *AnonymousHandler {
	return &AnonymousHandler{patterns: append([]string(nil), patterns...)}
}

func (h *AnonymousHandler) Handle(_ context.Context, req *Request) (Decision, error) {
	for _, p := range h.patterns {
		if matchPath(p, req.Path) {
			return Allow(), nil
		}
	}
	return Delegate(), nil
}

// AuthenticatedHandler resolves the request's subject (once per request) and
// requires it to be authenticated. On success it attaches the subject and
// delegates; otherwise it denies as unauthenticated.
type AuthenticatedHandler struct {
	resolver SubjectResolver
}

// NewAuthenticatedHandler builds the handler over a subject resolver,
// typically a *websec.Manager.
func NewAuthenticatedHandler(resolver SubjectResolver) *AuthenticatedHandler {
	return &AuthenticatedHandler{resolver: resolver}
}

func (h *AuthenticatedHandler) Handle(ctx context.Context, req *Request) (Decision, error) {
	if req.Subject == nil {
		subject, err := h.resolver.Resolve(ctx, req.Hints)
		if err != nil {
			return Decision{}, err
		}
		req.Subject = subject
	}
	if !req.Subject.Authenticated {
		return Deny(ReasonUnauthenticated), nil
	}
	return Delegate(), nil
}

// RouteRoles binds a path pattern to the roles required to access it.
// First matching pattern wins.
type RouteRoles struct {
	Pattern string
	Roles   []string
}

// RoleHandler is the terminal handler: it admits the request when the
// subject holds any of the roles the matched route requires, or when the
// route requires none.
type RoleHandler struct {
	routes []RouteRoles
}

// NewRoleHandler builds the handler over a read-only route table.
func NewRoleHandler(routes []RouteRoles) *RoleHandler {
	return &RoleHandler{routes: append([]RouteRoles(nil), routes...)}
}

func (h *RoleHandler) Handle(_ context.Context, req *Request) (Decision, error) {
	if req.Subject == nil || !req.Subject.Authenticated {
		return Deny(ReasonUnauthenticated), nil
	}
	for _, route := range h.routes {
		if !matchPath(route.Pattern, req.Path) {
			continue
		}
		if req.Subject.HasAnyRole(route.Roles...) {
			return Allow(), nil
		}
		return Deny(ReasonForbidden), nil
	}
	// No route entry means no role requirement.
	return Allow(), nil
}

var _ Handler = (*AnonymousHandler)(nil)
var _ Handler = (*AuthenticatedHandler)(nil)
var _ Handler = (*RoleHandler)(nil)
