package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Solsentry tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("solsentry", "1.0.0")
	client := NewAPIClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolListRules, h.HandleListRules)
	s.AddTool(ToolAddRule, h.HandleAddRule)
	s.AddTool(ToolRemoveRule, h.HandleRemoveRule)
	s.AddTool(ToolRecentAssessments, h.HandleRecentAssessments)

	return s
}
