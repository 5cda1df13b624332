// ABOUTME: Client subcommands that talk to a running gateway or its config
// ABOUTME: health, stats, prompt, and token

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/2389/fanout-gateway/internal/auth"
	"github.com/2389/fanout-gateway/internal/config"
	"github.com/2389/fanout-gateway/internal/dashboard"
	"github.com/2389/fanout-gateway/internal/rpc"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// tokenPath is where `token --save` writes and `prompt` reads a bearer token.
func tokenPath() string {
	return filepath.Join(filepath.Dir(getConfigPath()), "token")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func getDashboard(ctx context.Context, httpAddr, path string) (*http.Response, error) {
	if httpAddr == "" {
		return nil, errors.New("server.http_addr is not set")
	}
	url := fmt.Sprintf("http://%s%s", httpAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return http.DefaultClient.Do(req)
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := getDashboard(ctx, cfg.Server.HTTPAddr, "/health/ready")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Printf("healthy (%s)\n", strings.TrimSpace(string(body)))
	return nil
}

func runStats(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := getDashboard(ctx, cfg.Server.HTTPAddr, "/summary")
	if err != nil {
		return fmt.Errorf("fetching summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching summary: status %d", resp.StatusCode)
	}

	var summary dashboard.SummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return fmt.Errorf("decoding summary: %w", err)
	}

	renderSummary(out, &summary)
	return nil
}

func renderSummary(out io.Writer, s *dashboard.SummaryResponse) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintln(out, "Gateway")
	fmt.Fprintf(out, "  Status:    %s\n", s.Stats.Status)
	fmt.Fprintf(out, "  Uptime:    %s\n", s.Stats.Uptime)
	fmt.Fprintf(out, "  Requests:  %d\n", s.Stats.TotalRequestsProcessed)
	fmt.Fprintf(out, "  Models:    %s\n", strings.Join(s.Stats.ActiveModels, ", "))
	fmt.Fprintln(out)

	cyan.Fprintln(out, "Leaderboard")
	if len(s.Leaderboard) == 0 {
		gray.Fprintln(out, "  (no wins yet)")
	}
	for i, e := range s.Leaderboard {
		fmt.Fprintf(out, "  %d. %-20s %d\n", i+1, e.Winner, e.WinCount)
	}
	fmt.Fprintln(out)

	cyan.Fprintln(out, "Recent requests")
	if len(s.Logs) == 0 {
		gray.Fprintln(out, "  (none)")
	}
	for _, l := range s.Logs {
		fmt.Fprintf(out, "  %s  %-12s %5dms  %s\n",
			l.CreatedAt.Local().Format("15:04:05"), l.Winner, l.Latency, truncate(l.Prompt, 60))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// resolveToken prefers FANOUT_TOKEN, then the saved token file.
func resolveToken() string {
	if t := os.Getenv("FANOUT_TOKEN"); t != "" {
		return t
	}
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func runPrompt(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("prompt", flag.ContinueOnError)
	model := fs.String("model", "", "model hint forwarded to the gateway")
	addr := fs.String("addr", "", "gRPC address (defaults to server.grpc_addr)")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return errors.New("prompt text is required")
	}

	target := *addr
	if target == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		target = cfg.Server.GRPCAddr
	}
	if target == "" {
		return errors.New("no gRPC address: pass --addr or set server.grpc_addr")
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token := resolveToken(); token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.BearerCredentials{Token: token, AllowInsecure: true}))
	}

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	resp, err := rpc.NewLLMServiceClient(conn).ExecutePrompt(ctx, &rpc.PromptRequest{Model: *model, UserPrompt: text})
	if err != nil {
		return fmt.Errorf("executing prompt: %w", err)
	}

	renderPromptResponse(out, resp)
	return nil
}

func renderPromptResponse(out io.Writer, resp *rpc.PromptResponse) {
	gray := color.New(color.FgHiBlack)
	winner := resp.GetWinner()
	if winner == "" {
		winner = dashboard.NoWinner
	}
	gray.Fprintf(out, "winner=%s succeeded=%d cost=$%.6f\n\n", winner, resp.GetSucceeded(), resp.GetCost())
	fmt.Fprintln(out, resp.GetText())
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject, logged with every call")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	save := fs.Bool("save", false, "also write the token next to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured in %s", getConfigPath())
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(strings.TrimSpace(*subject), *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if *save {
		if err := os.WriteFile(tokenPath(), []byte(token), 0600); err != nil {
			return fmt.Errorf("writing token file: %w", err)
		}
		color.New(color.FgGreen).Fprintf(os.Stderr, "  ✓ Saved token: %s\n", tokenPath())
	}

	fmt.Fprintln(out, token)
	return nil
}
