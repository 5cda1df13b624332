// ABOUTME: Interactive `init` subcommand that writes a starter gateway.yaml
// ABOUTME: Generates a JWT secret and a sample adapter list on request

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers holds everything runInit asks for.
type initAnswers struct {
	GRPCAddr  string
	HTTPAddr  string
	DBPath    string
	JWTSecret string
	Adapters  bool

	Tailscale          bool
	TailscaleHostname  string
	TailscaleAuthKey   string
	TailscaleEphemeral bool
	TailscaleFunnel    bool

	LogLevel  string
	LogFormat string
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "fanout-gateway configuration setup")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.GRPCAddr = prompt(reader, out, "gRPC address", "localhost:50051")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:3000")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	a.DBPath = prompt(reader, out, "SQLite database path", filepath.Join(getDataPath(), "gateway.db"))

	fmt.Fprintln(out, "\n--- Backends ---")
	a.Adapters = yes(prompt(reader, out, "Add grok, claude, gemini, and tavily adapters?", "yes"))

	fmt.Fprintln(out, "\n--- Authentication ---")
	if yes(prompt(reader, out, "Require bearer tokens on the RPC port?", "no")) {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.JWTSecret = secret
	}

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TailscaleHostname = prompt(reader, out, "Tailscale hostname", "fanout-gateway")
		a.TailscaleAuthKey = prompt(reader, out, "Tailscale auth key (leave empty for interactive)", "")
		a.TailscaleEphemeral = yes(prompt(reader, out, "Ephemeral node?", "no"))
		a.TailscaleFunnel = yes(prompt(reader, out, "Enable Funnel (public HTTPS dashboard)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may hold a JWT secret.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	if a.Adapters {
		fmt.Fprintln(out, "\nSet XAI_API_KEY, CLAUDE_API_KEY, GEMINI_API_KEY, and TAVILY_API_KEY (a .env file works).")
	}
	if a.JWTSecret != "" {
		fmt.Fprintln(out, "\nMint a client token with:")
		fmt.Fprintln(out, "  fanout-gateway token --subject me --save")
	}
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  fanout-gateway serve")

	return nil
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# fanout-gateway configuration\n")
	cfg.WriteString("# Generated by fanout-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  grpc_addr: %q\n", a.GRPCAddr))
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
	cfg.WriteString("\n")

	if a.JWTSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
		cfg.WriteString("\n")
	}

	cfg.WriteString("scatter:\n")
	cfg.WriteString("  adapter_timeout: \"30s\"\n")
	cfg.WriteString("  recent_logs_limit: 5\n")
	cfg.WriteString("\n")

	if a.Adapters {
		// Order matters: the first successful adapter in this list wins.
		cfg.WriteString("adapters:\n")
		cfg.WriteString("  - name: grok\n")
		cfg.WriteString("    kind: openai\n")
		cfg.WriteString("    model: grok-3-mini\n")
		cfg.WriteString("    endpoint: https://api.x.ai/v1\n")
		cfg.WriteString("    api_key_env: XAI_API_KEY\n")
		cfg.WriteString("  - name: claude\n")
		cfg.WriteString("    kind: anthropic\n")
		cfg.WriteString("    model: claude-3-5-haiku-latest\n")
		cfg.WriteString("  - name: gemini\n")
		cfg.WriteString("    kind: gemini\n")
		cfg.WriteString("    model: gemini-2.0-flash\n")
		cfg.WriteString("  - name: tavily\n")
		cfg.WriteString("    kind: tavily\n")
		cfg.WriteString("\n")
	}

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TailscaleHostname))
		if a.TailscaleAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", a.TailscaleAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.TailscaleEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", a.TailscaleFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("events:\n")
	cfg.WriteString("  nats_url: \"\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("telemetry:\n")
	cfg.WriteString("  otlp_endpoint: \"\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))

	return cfg.String()
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
