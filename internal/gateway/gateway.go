// ABOUTME: Gateway that builds every component and runs the gRPC and HTTP servers
// ABOUTME: Owns startup order, serving both front-ends, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/2389/fanout-gateway/internal/adapter"
	"github.com/2389/fanout-gateway/internal/auth"
	"github.com/2389/fanout-gateway/internal/config"
	"github.com/2389/fanout-gateway/internal/dashboard"
	"github.com/2389/fanout-gateway/internal/events"
	"github.com/2389/fanout-gateway/internal/rpc"
	"github.com/2389/fanout-gateway/internal/scatter"
	"github.com/2389/fanout-gateway/internal/state"
	"github.com/2389/fanout-gateway/internal/store"
)

// shutdownGrace is added to the longest a request can run when Run sizes the
// shutdown deadline. It covers the log append and closing the servers.
const shutdownGrace = 5 * time.Second

// Gateway owns the fanout-gateway server components.
type Gateway struct {
	config       *config.Config
	state        *state.State
	store        store.RequestLogStore
	orchestrator *scatter.Orchestrator
	publisher    events.Publisher
	grpcServer   *grpc.Server
	health       *health.Server
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger

	// Injected store and publisher belong to the caller and are never closed here.
	ownsStore     bool
	ownsPublisher bool

	// serverID identifies this gateway instance
	serverID string
}

// Option customizes New.
type Option func(*options)

type options struct {
	registry  *adapter.Registry
	publisher events.Publisher
	store     store.RequestLogStore
}

// WithRegistry uses registry instead of building adapters from config.
func WithRegistry(registry *adapter.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithPublisher uses p instead of the publisher selected by config.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithStore uses s instead of opening the configured database.
func WithStore(s store.RequestLogStore) Option {
	return func(o *options) { o.store = s }
}

// New creates a new Gateway instance with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	registry := o.registry
	if registry == nil {
		var err error
		registry, err = adapter.FromConfig(cfg.Adapters, adapter.NewHTTPClient(cfg.Scatter.MaxConnsPerHost))
		if err != nil {
			return nil, fmt.Errorf("building adapters: %w", err)
		}
	}
	if len(registry.ByCapability(adapter.CapabilityChat)) == 0 {
		logger.Warn("no chat adapters configured; every prompt will be rejected")
	}

	s := o.store
	ownsStore := s == nil
	if ownsStore {
		var err error
		s, err = store.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
	}

	var owned []io.Closer
	if ownsStore {
		owned = append(owned, s)
	}

	publisher, err := initPublisher(cfg, o.publisher, logger)
	if err != nil {
		closeAll(owned...)
		return nil, err
	}
	ownsPublisher := o.publisher == nil
	if ownsPublisher {
		owned = append(owned, publisher)
	}

	st := state.New(s, registry)
	orch, err := scatter.New(st, scatter.Options{
		Config:    scatter.ConfigFromScatter(cfg.Scatter),
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		closeAll(owned...)
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	grpcServer, err := createGRPCServer(cfg, logger)
	if err != nil {
		closeAll(owned...)
		return nil, err
	}

	gw := &Gateway{
		config:        cfg,
		state:         st,
		store:         s,
		orchestrator:  orch,
		publisher:     publisher,
		grpcServer:    grpcServer,
		health:        health.NewServer(),
		logger:        logger.With("component", "gateway"),
		ownsStore:     ownsStore,
		ownsPublisher: ownsPublisher,
		serverID:      uuid.NewString(),
	}

	rpc.RegisterLLMServiceServer(grpcServer, rpc.NewServer(orch, logger))
	healthpb.RegisterHealthServer(grpcServer, gw.health)
	gw.health.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	gw.httpServer = &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: dashboard.NewRouter(st, dashboard.Options{
			RecentLogsLimit: cfg.Scatter.RecentLogsLimit,
			Logger:          logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway initialized",
		"server_id", gw.serverID,
		"adapters", registry.Names(),
		"database", cfg.Database.Driver,
	)
	return gw, nil
}

// initPublisher picks the injected publisher, NATS when configured, or a no-op.
func initPublisher(cfg *config.Config, injected events.Publisher, logger *slog.Logger) (events.Publisher, error) {
	if injected != nil {
		return injected, nil
	}
	if cfg.Events.NATSURL == "" {
		return events.NewNoopPublisher(), nil
	}
	p, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing event publisher: %w", err)
	}
	return p, nil
}

func grpcServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		rpc.ServerCodecOption(),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

// createGRPCServer creates a gRPC server with or without auth based on config.
func createGRPCServer(cfg *config.Config, logger *slog.Logger) (*grpc.Server, error) {
	opts := grpcServerOptions()

	if cfg.Auth.JWTSecret == "" {
		opts = append(opts, grpc.ChainUnaryInterceptor(
			rpc.LoggingUnaryInterceptor(logger),
			auth.NoAuthUnaryInterceptor(),
		))
		logger.Warn("auth disabled - no jwt_secret configured")
		return grpc.NewServer(opts...), nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		rpc.LoggingUnaryInterceptor(logger),
		auth.UnaryInterceptor(verifier, logger.With("component", "auth")),
	))
	logger.Info("auth interceptor enabled (JWT)")
	return grpc.NewServer(opts...), nil
}

// ServerID returns this instance's identifier.
func (g *Gateway) ServerID() string {
	return g.serverID
}

// State returns the shared gateway state.
func (g *Gateway) State() *state.State {
	return g.state
}

// serve starts both servers on ls and reports the first failure on the
// returned channel. A clean HTTP close is not a failure.
func (g *Gateway) serve(ls listeners) <-chan error {
	errCh := make(chan error, 2)

	go func() {
		g.logger.Info("gRPC server listening", "addr", ls.rpc.Addr().String())
		if err := g.grpcServer.Serve(ls.rpc); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		g.logger.Info("HTTP server listening", "addr", ls.dashboard.Addr().String())
		if err := g.httpServer.Serve(ls.dashboard); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// Run starts both servers and blocks until ctx is canceled or a server fails.
// Returns nil on graceful shutdown, or the server error that stopped it.
func (g *Gateway) Run(ctx context.Context) error {
	ls, err := g.listen(ctx)
	if err != nil {
		return err
	}

	var serverErr error
	errCh := g.serve(ls)
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	// ctx may already be canceled, so shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.shutdownTimeout())
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	select {
	case err := <-errCh:
		g.logger.Error("additional server error", "error", err)
	default:
	}

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// shutdownTimeout is long enough for a request that started just before
// shutdown to finish and be logged.
func (g *Gateway) shutdownTimeout() time.Duration {
	return g.orchestrator.DrainBudget() + shutdownGrace
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops both servers and waits for in-flight requests to be logged
// and counted, then closes the publisher and the store if New opened them.
// Requests still running when ctx ends are abandoned.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.health.Shutdown()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	// grpc.Server.Stop does not wait for handlers, so wait on the
	// orchestrator before the store goes away.
	if err := g.orchestrator.Drain(ctx); err != nil {
		g.logger.Warn("in-flight requests did not finish before shutdown deadline", "error", err)
		errs = appendCloseError(errs, "draining requests", err)
	}

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if g.ownsPublisher {
		errs = appendCloseError(errs, "publisher close", g.publisher.Close())
	}
	if g.ownsStore {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
