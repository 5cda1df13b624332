// ABOUTME: Unit tests for gRPC auth interceptors
// ABOUTME: Tests bearer token handling and the anonymous fallback

package auth

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Helper to create test context with an authorization header
func contextWithHeader(value string) context.Context {
	md := metadata.New(map[string]string{"authorization": value})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryInterceptor_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate("alice", time.Hour)

	interceptor := UnaryInterceptor(verifier, nil)

	var captured *AuthContext
	handler := func(ctx context.Context, req any) (any, error) {
		captured = FromContext(ctx)
		return "response", nil
	}

	resp, err := interceptor(contextWithHeader("Bearer "+token), nil, &grpc.UnaryServerInfo{}, handler)
	if err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if resp != "response" {
		t.Errorf("response = %v, want %v", resp, "response")
	}
	if captured == nil || captured.Subject != "alice" || captured.Anonymous {
		t.Errorf("auth context = %+v, want subject alice", captured)
	}
}

func TestUnaryInterceptor_Rejects(t *testing.T) {
	verifier := newTestVerifier(t)
	expired, _ := verifier.Generate("alice", -time.Minute)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no metadata", ctx: context.Background()},
		{name: "no header", ctx: metadata.NewIncomingContext(context.Background(), metadata.MD{})},
		{name: "basic auth", ctx: contextWithHeader("Basic dXNlcjpwYXNz")},
		{name: "empty bearer", ctx: contextWithHeader("Bearer ")},
		{name: "garbage token", ctx: contextWithHeader("Bearer nope")},
		{name: "expired token", ctx: contextWithHeader("Bearer " + expired)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			interceptor := UnaryInterceptor(verifier, logger)

			called := false
			handler := func(ctx context.Context, req any) (any, error) {
				called = true
				return nil, nil
			}

			_, err := interceptor(tt.ctx, nil, &grpc.UnaryServerInfo{}, handler)
			if status.Code(err) != codes.Unauthenticated {
				t.Errorf("code = %v, want Unauthenticated", status.Code(err))
			}
			if called {
				t.Error("handler should not be called")
			}
			if !strings.Contains(buf.String(), "auth failure") {
				t.Errorf("expected auth failure log, got %q", buf.String())
			}
		})
	}
}

func TestNoAuthUnaryInterceptor(t *testing.T) {
	interceptor := NoAuthUnaryInterceptor()

	var captured *AuthContext
	handler := func(ctx context.Context, req any) (any, error) {
		captured = FromContext(ctx)
		return nil, nil
	}

	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if captured == nil || !captured.Anonymous || captured.Subject != AnonymousSubject {
		t.Errorf("auth context = %+v, want anonymous", captured)
	}
}

func TestBearerCredentials(t *testing.T) {
	creds := BearerCredentials{Token: "abc"}
	md, err := creds.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata() error = %v", err)
	}
	if md["authorization"] != "Bearer abc" {
		t.Errorf("authorization = %q", md["authorization"])
	}
	if !creds.RequireTransportSecurity() {
		t.Error("expected transport security by default")
	}
	if (BearerCredentials{Token: "abc", AllowInsecure: true}).RequireTransportSecurity() {
		t.Error("AllowInsecure should disable transport security")
	}
}
