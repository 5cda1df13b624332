// Package gateway assembles and runs the fanout-gateway server.
//
// # Overview
//
// New builds every component from config, in this order:
//
//  1. Adapter registry from config.Adapters (file order is the winner order)
//  2. Request log store (SQLite by default, Postgres when configured)
//  3. Event publisher (NATS when events.nats_url is set, otherwise a no-op)
//  4. Shared state and the scatter-gather orchestrator
//  5. gRPC server with gateway.LLMService and grpc.health.v1
//  6. HTTP server with the read-only dashboard
//
// The registry, publisher, and store can be injected with WithRegistry,
// WithPublisher, and WithStore.
//
// # Listeners
//
// By default the servers listen on server.grpc_addr and server.http_addr.
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// listens there instead:
//
//	:50051  gRPC
//	:80     HTTP (or :443 with tailscale.https, or public :443 with tailscale.funnel)
//
// # Authentication
//
// When auth.jwt_secret is set, RPC calls need a bearer JWT. Otherwise every
// caller is anonymous. The dashboard is always open.
//
// # Shutdown
//
// Run returns when its context is canceled or a server fails. Shutdown stops
// the HTTP server and gRPC, then drains the orchestrator so every running
// prompt is logged and counted, then closes the publisher and the store. An
// injected store or publisher is left open for its owner. Run allows one
// worst-case request plus a few seconds before giving up on the drain.
package gateway
