// Package grpcmw adapts the security filter chain to pure gRPC servers.
//
// Interceptors extract identity hints from incoming metadata, drive the
// chain with the full method name as the path, and convert Deny decisions
// to gRPC status codes. For Kratos-based services, use kratosmw instead.
package grpcmw

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/filter"
)

// Metadata keys for identity material.
const (
	MDSessionID      = "session-id"
	MDAuthorization  = "authorization"
	MDRemotePlatform = "x-remote-platform"
	MDRemoteToken    = "x-remote-token"
)

// UnaryGuard returns a gRPC unary server interceptor that runs every call
// through the filter chain. Allowed calls continue with the subject in the
// context; denied calls fail with Unauthenticated, PermissionDenied or
// Unavailable.
func UnaryGuard(chain *filter.Chain) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := guard(ctx, chain, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamGuard returns a gRPC stream server interceptor applying the same
// policy as UnaryGuard.
func StreamGuard(chain *filter.Chain) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := guard(ss.Context(), chain, info.FullMethod)
		if err != nil {
			return err
		}
		wrapped := &wrappedStream{ServerStream: ss, ctx: ctx}
		return handler(srv, wrapped)
	}
}

// --- internal helpers ---

func guard(ctx context.Context, chain *filter.Chain, fullMethod string) (context.Context, error) {
	req := &filter.Request{
		Path:  fullMethod,
		Hints: hintsFromMetadata(ctx),
	}

	decision := chain.Apply(ctx, req)
	if decision.Denied() {
		return ctx, denyStatus(decision.Reason())
	}

	if req.Subject != nil {
		ctx = websec.WithSubject(ctx, req.Subject)
	}
	return ctx, nil
}

func hintsFromMetadata(ctx context.Context) websec.Hints {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return websec.Hints{}
	}

	hints := websec.Hints{SessionID: first(md, MDSessionID)}

	if auth := first(md, MDAuthorization); auth != "" {
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

	if tok := first(md, MDRemoteToken); tok != "" {
		if code, err := strconv.Atoi(first(md, MDRemotePlatform)); err == nil {
			if platform, ok := websec.PlatformFromCode(code); ok {
				t := websec.NewRemoteToken(platform, tok)
				hints.RemoteToken = &t
			}
		}
	}

	return hints
}

func first(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func denyStatus(reason filter.DenyReason) error {
	switch reason {
	case filter.ReasonForbidden:
		return status.Error(codes.PermissionDenied, "forbidden")
	case filter.ReasonUnavailable:
		return status.Error(codes.Unavailable, "authentication backend unavailable")
	default:
		return status.Error(codes.Unauthenticated, "authentication required")
	}
}

// wrappedStream wraps grpc.ServerStream to override Context().
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
