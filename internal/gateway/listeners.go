// ABOUTME: Listener setup for the two front-ends, on plain TCP or on a tailnet
// ABOUTME: The tailnet path runs an embedded tsnet node and can serve the dashboard over HTTPS or Funnel

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/2389/fanout-gateway/internal/config"
)

// Tailnet ports. server.grpc_addr and server.http_addr do not apply there.
const (
	tailnetRPCPort   = ":50051"
	tailnetHTTPPort  = ":80"
	tailnetHTTPSPort = ":443"
)

// listeners are what Run serves the RPC and dashboard front-ends on.
type listeners struct {
	rpc       net.Listener
	dashboard net.Listener
}

// closeAll closes every non-nil closer in reverse order. Used to unwind a
// partially built setup.
func closeAll(closers ...io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] != nil {
			_ = closers[i].Close()
		}
	}
}

func (g *Gateway) listen(ctx context.Context) (listeners, error) {
	if !g.config.Tailscale.Enabled {
		return g.listenTCP(g.config.Server)
	}

	if g.config.Server.GRPCAddr != "" || g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server addresses are ignored when tailscale is enabled",
			"grpc_addr", g.config.Server.GRPCAddr,
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
	return g.listenTailnet(ctx, g.config.Tailscale)
}

func (g *Gateway) listenTCP(cfg config.ServerConfig) (listeners, error) {
	g.logger.Info("starting gateway", "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)

	rpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return listeners{}, fmt.Errorf("listening on gRPC address: %w", err)
	}
	httpLn, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		closeAll(rpcLn)
		return listeners{}, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return listeners{rpc: rpcLn, dashboard: httpLn}, nil
}

// tailnetStateDir returns where the tsnet node keeps its identity.
func tailnetStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no home directory for tailscale state, set tailscale.state_dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "fanout-gateway", "tailscale"), nil
}

// tailnetAuthKey prefers the configured key, then TS_AUTHKEY.
func tailnetAuthKey(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if key := os.Getenv("TS_AUTHKEY"); key != "" {
		return key, nil
	}
	return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
}

// listenTailnet brings up the tsnet node and opens both listeners on it.
// On success the node is owned by g and closed in Shutdown.
func (g *Gateway) listenTailnet(ctx context.Context, cfg config.TailscaleConfig) (listeners, error) {
	dir, err := tailnetStateDir(cfg.StateDir)
	if err != nil {
		return listeners{}, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return listeners{}, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	key, err := tailnetAuthKey(cfg.AuthKey)
	if err != nil {
		return listeners{}, err
	}

	node := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       dir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   key,
	}

	g.logger.Info("starting tailscale node", "hostname", cfg.Hostname, "state_dir", dir, "ephemeral", cfg.Ephemeral)
	status, err := node.Up(ctx)
	if err != nil {
		closeAll(node)
		return listeners{}, fmt.Errorf("starting tailscale: %w", err)
	}

	var ip, dnsName string
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", cfg.Hostname, "tailscale_ip", ip, "dns_name", dnsName)

	rpcLn, err := node.Listen("tcp", tailnetRPCPort)
	if err != nil {
		closeAll(node)
		return listeners{}, fmt.Errorf("listening on tailscale gRPC port: %w", err)
	}

	httpLn, err := dashboardListener(node, cfg)
	if err != nil {
		closeAll(node, rpcLn)
		return listeners{}, err
	}

	switch {
	case cfg.Funnel:
		g.logger.Info("dashboard is public through tailscale funnel", "port", tailnetHTTPSPort)
	case cfg.HTTPS:
		g.logger.Info("dashboard served over HTTPS with a tailnet certificate", "port", tailnetHTTPSPort)
	}

	g.tsnetServer = node
	return listeners{rpc: rpcLn, dashboard: httpLn}, nil
}

// dashboardListener picks Funnel, tailnet HTTPS, or plain HTTP on the node.
func dashboardListener(node *tsnet.Server, cfg config.TailscaleConfig) (net.Listener, error) {
	if cfg.Funnel {
		ln, err := node.ListenFunnel("tcp", tailnetHTTPSPort)
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	}

	if !cfg.HTTPS {
		ln, err := node.Listen("tcp", tailnetHTTPPort)
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

	ln, err := node.Listen("tcp", tailnetHTTPSPort)
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := node.LocalClient()
	if err != nil {
		closeAll(ln)
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}
