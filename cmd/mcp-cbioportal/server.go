package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
)

const serverVersion = "1.0.0"

// NewMCPCBioPortalServer opens the ClickHouse connection, verifies the
// database user's privileges, and wires the tool server into an MCP server
// instance. The returned client must be closed by the caller.
func NewMCPCBioPortalServer(ctx context.Context, cfg *McpConfig) (*server.MCPServer, *ClickHouseClient, *AuditStore, error) {
	client, err := openClickHouse(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	// Fail fast on both missing and excessive privileges before serving.
	if err := ensureDBPermissions(ctx, client, cfg); err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	var audit *AuditStore
	if cfg.AuditDBPath != "" {
		audit, err = openAuditStore(cfg.AuditDBPath)
		if err != nil {
			// Auditing must never block serving.
			fmt.Fprintf(os.Stderr, "query auditing disabled: %v\n", err)
			audit = nil
		}
	}

	calculator := NewFrequencyCalculator(client)
	cbioportalServer := NewCBioPortalServer(client, calculator, audit)

	s := server.NewMCPServer(
		"cBioPortal MCP Server",
		serverVersion,
		server.WithLogging(),
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	registerTools(s, cbioportalServer)
	registerPrompts(s)

	return s, client, audit, nil
}
