// ABOUTME: gRPC interceptors for authenticating requests using bearer JWTs
// ABOUTME: Extracts auth from metadata and populates context for handlers

package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// UnaryInterceptor returns a gRPC unary interceptor that requires a valid
// "authorization: Bearer <jwt>" header on every call.
// The optional logger enables auth failure logging for security monitoring.
func UnaryInterceptor(tokens TokenVerifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		authCtx, err := extractAuth(ctx, tokens, logger)
		if err != nil {
			return nil, err
		}

		return handler(WithAuth(ctx, authCtx), req)
	}
}

// NoAuthUnaryInterceptor returns a gRPC unary interceptor that injects an
// anonymous identity when authentication is disabled.
func NoAuthUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = WithAuth(ctx, &AuthContext{Subject: AnonymousSubject, Anonymous: true})
		return handler(ctx, req)
	}
}

// BearerCredentials attaches a bearer token to every outgoing call.
type BearerCredentials struct {
	Token string
	// AllowInsecure permits sending the token over plaintext connections.
	AllowInsecure bool
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (b BearerCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.Token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (b BearerCredentials) RequireTransportSecurity() bool {
	return !b.AllowInsecure
}

// extractAuth validates the bearer token in the incoming metadata.
func extractAuth(ctx context.Context, tokens TokenVerifier, logger *slog.Logger) (*AuthContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing_metadata")
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		logAuthFailure(logger, ctx, "missing_header")
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	tokenString, found := strings.CutPrefix(authHeaders[0], "Bearer ")
	if !found || tokenString == "" {
		logAuthFailure(logger, ctx, "bad_header_format")
		return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
	}

	subject, err := tokens.Verify(tokenString)
	if err != nil {
		logAuthFailure(logger, ctx, "jwt_auth_failed", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	return &AuthContext{Subject: subject}, nil
}
