// Package kratosmw adapts the security filter chain to the Kratos
// framework. Works transparently with both Kratos HTTP and gRPC transports.
package kratosmw

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/filter"
)

// Transport headers for identity material.
const (
	HeaderSessionID      = "X-Session-Id"
	HeaderRemotePlatform = "X-Remote-Platform"
	HeaderRemoteToken    = "X-Remote-Token"
)

// Guard returns Kratos middleware that runs every operation through the
// filter chain, using transport.Operation() as the path. Requests outside a
// transport context pass through untouched.
func Guard(chain *filter.Chain) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}

			freq := &filter.Request{
				Path:  tr.Operation(),
				Hints: hintsFromTransport(tr),
			}

			decision := chain.Apply(ctx, freq)
			if decision.Denied() {
				return nil, denyError(decision.Reason())
			}

			if freq.Subject != nil {
				ctx = websec.WithSubject(ctx, freq.Subject)
			}
			return handler(ctx, req)
		}
	}
}

// --- internal helpers ---

func hintsFromTransport(tr transport.Transporter) websec.Hints {
	header := tr.RequestHeader()
	hints := websec.Hints{SessionID: header.Get(HeaderSessionID)}

	if auth := header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 {
			switch {
			case strings.EqualFold(parts[0], "Basic"):
				hints.BasicAuthorization = parts[1]
			case strings.EqualFold(parts[0], "Bearer"):
				hints.BearerToken = parts[1]
			}
		}
	}

	if tok := header.Get(HeaderRemoteToken); tok != "" {
		if code, err := strconv.Atoi(header.Get(HeaderRemotePlatform)); err == nil {
			if platform, ok := websec.PlatformFromCode(code); ok {
				t := websec.NewRemoteToken(platform, tok)
				hints.RemoteToken = &t
			}
		}
	}

	return hints
}

func denyError(reason filter.DenyReason) error {
	switch reason {
	case filter.ReasonForbidden:
		return errors.Forbidden("FORBIDDEN", "forbidden")
	case filter.ReasonUnavailable:
		return errors.ServiceUnavailable("UNAVAILABLE", "authentication backend unavailable")
	default:
		return errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
}
