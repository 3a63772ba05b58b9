package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// TransportType identifies how the MCP server talks to its client.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
)

// validTransports lists the accepted CLICKHOUSE_MCP_SERVER_TRANSPORT values.
var validTransports = []TransportType{TransportStdio, TransportHTTP, TransportSSE}

// McpConfig holds the server configuration resolved from environment variables.
type McpConfig struct {
	// ClickHouse connection settings.
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// MCP transport settings.
	Transport TransportType
	BindHost  string
	BindPort  int

	// AuditDBPath, when non-empty, enables the SQLite query audit store.
	AuditDBPath string
}

// Addr returns the ClickHouse host:port address.
func (c *McpConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BindAddr returns the host:port the HTTP/SSE transports listen on.
func (c *McpConfig) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort)
}

// loadConfig resolves the configuration from environment variables.
// Defaults match the original deployment: stdio transport, read-only
// app_user against the public cBioPortal ClickHouse database.
func loadConfig() (*McpConfig, error) {
	cfg := &McpConfig{
		Host:        envOrDefault("CLICKHOUSE_HOST", "localhost"),
		User:        envOrDefault("CLICKHOUSE_USER", "app_user"),
		Password:    os.Getenv("CLICKHOUSE_PASSWORD"),
		Database:    envOrDefault("CLICKHOUSE_DATABASE", "cgds_public_2025_06_24"),
		BindHost:    envOrDefault("CLICKHOUSE_MCP_BIND_HOST", "127.0.0.1"),
		AuditDBPath: os.Getenv("CBIOPORTAL_MCP_AUDIT_DB"),
	}

	port, err := envIntOrDefault("CLICKHOUSE_PORT", 9000)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	bindPort, err := envIntOrDefault("CLICKHOUSE_MCP_BIND_PORT", 8000)
	if err != nil {
		return nil, err
	}
	cfg.BindPort = bindPort

	transport, err := parseTransport(envOrDefault("CLICKHOUSE_MCP_SERVER_TRANSPORT", string(TransportStdio)))
	if err != nil {
		return nil, err
	}
	cfg.Transport = transport

	return cfg, nil
}

// parseTransport validates a transport value against the supported set.
func parseTransport(value string) (TransportType, error) {
	transport := TransportType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range validTransports {
		if transport == t {
			return transport, nil
		}
	}

	options := make([]string, len(validTransports))
	for i, t := range validTransports {
		options[i] = fmt.Sprintf("%q", string(t))
	}
	return "", fmt.Errorf("invalid transport %q. Valid options: %s", value, strings.Join(options, ", "))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
