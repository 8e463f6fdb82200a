package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Solsentry MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_transaction",
	mcp.WithDescription(
		"Assess a simulated Solana transaction for wallet threats before signing. "+
			"Takes the simulator's analysis context and returns a risk score (0-100), "+
			"risk level, detected threats, and whether the transaction should be blocked."),
	mcp.WithString("wallet",
		mcp.Required(),
		mcp.Description("The wallet address the transaction would be signed by")),
	mcp.WithString("signature",
		mcp.Description("Transaction signature, if known")),
	mcp.WithObject("context",
		mcp.Required(),
		mcp.Description("The simulated transaction's analysis context: execution outcome, "+
			"financial activity (SOL/token/NFT transfers), invoked programs, and authority changes")),
)

var ToolListRules = mcp.NewTool("list_rules",
	mcp.WithDescription(
		"List the custom risk rules currently configured. "+
			"Each rule shows its severity, condition, whether it blocks transactions, "+
			"and which programs it applies to."),
)

var ToolAddRule = mcp.NewTool("add_rule",
	mcp.WithDescription(
		"Create or replace a custom risk rule. Rules are evaluated against every "+
			"analyzed transaction and add threats when their condition fires. "+
			"Condition types: sol_outflow_above, token_transfers_above, log_matches, "+
			"program_invoked, value_at_risk_above, compute_units_above, execution_failed."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Unique rule name (e.g. 'no-large-transfers')")),
	mcp.WithString("description",
		mcp.Description("Human-readable explanation of what the rule checks")),
	mcp.WithString("severity",
		mcp.Required(),
		mcp.Description("Threat severity when the rule fires"),
		mcp.Enum("LOW", "MEDIUM", "HIGH", "CRITICAL")),
	mcp.WithObject("condition",
		mcp.Required(),
		mcp.Description("Condition spec: {\"type\": \"sol_outflow_above\", \"params\": {\"lamports\": 1000000000}}")),
	mcp.WithString("message",
		mcp.Description("Message shown when the rule fires")),
	mcp.WithBoolean("blocking",
		mcp.Description("Whether a violation should block the transaction")),
)

var ToolRemoveRule = mcp.NewTool("remove_rule",
	mcp.WithDescription("Delete a custom risk rule by name."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Name of the rule to remove")),
)

var ToolRecentAssessments = mcp.NewTool("recent_assessments",
	mcp.WithDescription(
		"Fetch the recent risk assessment history for a wallet: scores, levels, "+
			"detected threats, and block decisions."),
	mcp.WithString("wallet",
		mcp.Required(),
		mcp.Description("The wallet address to look up")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20, max 100)")),
)
