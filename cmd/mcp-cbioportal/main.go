package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	srv, client, audit, err := NewMCPCBioPortalServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize cBioPortal MCP server: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	defer audit.Close()

	fmt.Fprintf(os.Stderr, "Starting cBioPortal MCP server (transport: %s, database: %s)\n", cfg.Transport, cfg.Database)

	switch cfg.Transport {
	case TransportHTTP:
		httpServer := server.NewStreamableHTTPServer(srv)
		err = httpServer.Start(cfg.BindAddr())
	case TransportSSE:
		sseServer := server.NewSSEServer(srv)
		err = sseServer.Start(cfg.BindAddr())
	default:
		err = server.ServeStdio(srv)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
		os.Exit(1)
	}
}
