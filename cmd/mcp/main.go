// Solsentry MCP Server - Exposes risk assessment capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/solsentry/solsentry/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:    envOrDefault("SOLSENTRY_API_URL", "http://localhost:8080"),
		SecretRef: os.Getenv("SOLSENTRY_SECRET_REF"),
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
