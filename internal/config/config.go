// ABOUTME: Configuration loading and parsing for fanout-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultGRPCAddr         = "[::1]:50051"
	DefaultHTTPAddr         = "127.0.0.1:3000"
	DefaultDatabasePath     = "gateway.db"
	DefaultMaxReadConns     = 4
	DefaultAdapterTimeout   = 30 * time.Second
	DefaultRecentLogsLimit  = 5
	DefaultMaxConnsPerHost  = 16
	DefaultEventsSubject    = "gateway.requests.completed"
	DefaultTelemetryService = "fanout-gateway"
)

// Database drivers understood by the store package.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Adapter kinds understood by the adapter package.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
	KindTavily    = "tavily"
)

// Config represents the complete fanout-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Scatter   ScatterConfig   `yaml:"scatter" toml:"scatter"`
	Adapters  []AdapterConfig `yaml:"adapters" toml:"adapters"`
	Events    EventsConfig    `yaml:"events" toml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// AuthConfig holds authentication configuration for the RPC front-end.
// An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve the dashboard on :443 with a tailnet cert
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Expose the dashboard publicly (implies HTTPS)
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig selects and configures the request log store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" toml:"driver"`
	Path         string `yaml:"path" toml:"path"`
	DSN          string `yaml:"dsn" toml:"dsn"`
	MaxReadConns int    `yaml:"max_read_conns" toml:"max_read_conns"`
}

// ScatterConfig holds fan-out tuning.
type ScatterConfig struct {
	AdapterTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for YAML/TOML unmarshaling
	AdapterTimeoutRaw string `yaml:"adapter_timeout" toml:"adapter_timeout"`

	MaxInFlight              int              `yaml:"max_in_flight" toml:"max_in_flight"`
	MaxConcurrencyPerRequest int              `yaml:"max_concurrency_per_request" toml:"max_concurrency_per_request"`
	MaxConnsPerHost          int              `yaml:"max_conns_per_host" toml:"max_conns_per_host"`
	RecentLogsLimit          int              `yaml:"recent_logs_limit" toml:"recent_logs_limit"`
	Enrichment               EnrichmentConfig `yaml:"enrichment" toml:"enrichment"`
}

// EnrichmentConfig decides when search adapters run ahead of the chat fan-out.
type EnrichmentConfig struct {
	Always   bool     `yaml:"always" toml:"always"`
	Hints    []string `yaml:"hints" toml:"hints"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// AdapterConfig describes one backend adapter. Order in the file is the
// registration order.
type AdapterConfig struct {
	Name            string  `yaml:"name" toml:"name"`
	Kind            string  `yaml:"kind" toml:"kind"`
	Model           string  `yaml:"model" toml:"model"`
	Endpoint        string  `yaml:"endpoint" toml:"endpoint"`
	APIKey          string  `yaml:"api_key" toml:"api_key"`
	APIKeyEnv       string  `yaml:"api_key_env" toml:"api_key_env"`
	MaxTokens       int     `yaml:"max_tokens" toml:"max_tokens"`
	CostPer1KInput  float64 `yaml:"cost_per_1k_input" toml:"cost_per_1k_input"`
	CostPer1KOutput float64 `yaml:"cost_per_1k_output" toml:"cost_per_1k_output"`
}

// EventsConfig configures the request-completed event publisher.
// An empty NATS URL disables publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url" toml:"nats_url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// TelemetryConfig configures OpenTelemetry export.
// An empty endpoint leaves tracing and metrics as no-ops.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure" toml:"insecure"`
	ServiceName  string `yaml:"service_name" toml:"service_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no adapters.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets deployment environments point the store elsewhere
// without editing the file.
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
		if cfg.Database.Driver == "" && isPostgresDSN(dsn) {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if p := os.Getenv("FANOUT_DB_PATH"); p != "" {
		cfg.Database.Path = p
	}
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (c *Config) applyDefaults() {
	if c.Server.GRPCAddr == "" && !c.Tailscale.Enabled {
		c.Server.GRPCAddr = DefaultGRPCAddr
	}
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Database.MaxReadConns <= 0 {
		c.Database.MaxReadConns = DefaultMaxReadConns
	}

	if c.Scatter.AdapterTimeout <= 0 {
		c.Scatter.AdapterTimeout = DefaultAdapterTimeout
	}
	if c.Scatter.RecentLogsLimit <= 0 {
		c.Scatter.RecentLogsLimit = DefaultRecentLogsLimit
	}
	if c.Scatter.MaxConnsPerHost <= 0 {
		c.Scatter.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if c.Scatter.Enrichment.Hints == nil {
		c.Scatter.Enrichment.Hints = []string{"tavily", "search"}
	}
	if c.Scatter.Enrichment.Keywords == nil {
		c.Scatter.Enrichment.Keywords = []string{"search", "latest"}
	}

	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultTelemetryService
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled {
		if c.Server.GRPCAddr == "" {
			return fmt.Errorf("server.grpc_addr is required (or enable tailscale)")
		}
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required (or enable tailscale)")
		}
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn (or DATABASE_URL) is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use %q or %q)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if c.Scatter.MaxInFlight < 0 {
		return fmt.Errorf("scatter.max_in_flight must not be negative")
	}
	if c.Scatter.MaxConcurrencyPerRequest < 0 {
		return fmt.Errorf("scatter.max_concurrency_per_request must not be negative")
	}

	seen := make(map[string]bool, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("adapters[%d].name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("adapters[%d]: duplicate adapter name %q", i, a.Name)
		}
		seen[a.Name] = true

		switch a.Kind {
		case KindOpenAI, KindAnthropic, KindGemini, KindTavily:
		default:
			return fmt.Errorf("adapters[%d] (%s): unknown kind %q", i, a.Name, a.Kind)
		}
		if a.Kind != KindTavily && a.Model == "" {
			return fmt.Errorf("adapters[%d] (%s): model is required", i, a.Name)
		}
		if a.CostPer1KInput < 0 || a.CostPer1KOutput < 0 {
			return fmt.Errorf("adapters[%d] (%s): costs must not be negative", i, a.Name)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Scatter.AdapterTimeoutRaw != "" {
		cfg.Scatter.AdapterTimeout, err = time.ParseDuration(cfg.Scatter.AdapterTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing adapter_timeout %q: %w", cfg.Scatter.AdapterTimeoutRaw, err)
		}
		if cfg.Scatter.AdapterTimeout <= 0 {
			return fmt.Errorf("adapter_timeout must be positive, got %q", cfg.Scatter.AdapterTimeoutRaw)
		}
	}

	return nil
}
