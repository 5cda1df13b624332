// Package config handles configuration loading for fanout-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Files ending in .toml are decoded as TOML; everything else is YAML.
// Missing values are filled with defaults before validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FANOUT_CONFIG environment variable
//  2. ~/.config/fanout/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	adapters:
//	  - name: grok
//	    kind: openai
//	    api_key: "${GROK_API_KEY}"
//
// DATABASE_URL overrides database.dsn and FANOUT_DB_PATH overrides database.path.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  grpc_addr: "[::1]:50051"
//	  http_addr: "127.0.0.1:3000"
//
// Fan-out settings:
//
//	scatter:
//	  adapter_timeout: "30s"
//	  max_in_flight: 64
//	  max_concurrency_per_request: 0
//	  recent_logs_limit: 5
//	  enrichment:
//	    hints: ["tavily", "search"]
//	    keywords: ["search", "latest"]
//
// Adapters are registered in file order. The first successful adapter in that
// order wins each request:
//
//	adapters:
//	  - name: grok
//	    kind: openai
//	    endpoint: "https://api.x.ai/v1"
//	    model: "grok-3-mini"
//	    api_key_env: GROK_API_KEY
//	  - name: claude
//	    kind: anthropic
//	    model: "claude-3-5-haiku-latest"
//	  - name: tavily
//	    kind: tavily
//
// Storage:
//
//	database:
//	  driver: sqlite           # or postgres
//	  path: "./gateway.db"
//	  dsn: "${DATABASE_URL}"   # postgres only
//
// Optional integrations:
//
//	auth:
//	  jwt_secret: "${FANOUT_JWT_SECRET}"
//	events:
//	  nats_url: "nats://127.0.0.1:4222"
//	telemetry:
//	  otlp_endpoint: "localhost:4318"
//	  insecure: true
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: text    # text or json
package config
