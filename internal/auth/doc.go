// Package auth provides optional caller authentication for the RPC front-end.
//
// # JWT Tokens
//
// When auth.jwt_secret is configured, every ExecutePrompt call must carry
//
//	authorization: Bearer <jwt>
//
// metadata. Tokens are HS256-signed with the configured secret and must carry
// a non-empty "sub" claim and an "exp" claim. Tokens are minted with:
//
//	fanout-gateway token --subject alice --ttl 720h
//
// # gRPC Interceptors
//
//	UnaryInterceptor(verifier, logger) // rejects calls without a valid token
//	NoAuthUnaryInterceptor()           // attaches an anonymous identity
//
// Either way, handlers can read the caller with FromContext or
// SubjectFromContext. Clients attach tokens with BearerCredentials.
//
// The HTTP dashboard is read-only and not covered by auth.
package auth
