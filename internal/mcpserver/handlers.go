package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *APIClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *APIClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeTransaction runs a transaction through the risk pipeline.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet := req.GetString("wallet", "")
	if wallet == "" {
		return mcp.NewToolResultError("wallet is required"), nil
	}
	signature := req.GetString("signature", "")

	analysisCtx, ok := req.GetArguments()["context"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("context is required and must be an object"), nil
	}

	raw, err := h.client.Analyze(ctx, wallet, signature, analysisCtx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	text, err := formatAssessment(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListRules lists the configured custom rules.
func (h *Handlers) HandleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListRules(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list rules: %v", err)), nil
	}

	text, err := formatRuleList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rules: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAddRule creates or replaces a custom rule.
func (h *Handlers) HandleAddRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	severity := req.GetString("severity", "")
	if severity == "" {
		return mcp.NewToolResultError("severity is required"), nil
	}
	condition, ok := req.GetArguments()["condition"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("condition is required and must be an object"), nil
	}

	spec := map[string]any{
		"name":      name,
		"severity":  severity,
		"condition": condition,
	}
	if v := req.GetString("description", ""); v != "" {
		spec["description"] = v
	}
	if v := req.GetString("message", ""); v != "" {
		spec["message"] = v
	}
	spec["blocking"] = req.GetBool("blocking", false)

	if _, err := h.client.AddRule(ctx, spec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add rule: %v", err)), nil
	}

	blocking := "advisory"
	if spec["blocking"] == true {
		blocking = "blocking"
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Rule %q added (%s, %s). It applies to all transactions analyzed from now on.",
		name, severity, blocking)), nil
}

// HandleRemoveRule deletes a custom rule.
func (h *Handlers) HandleRemoveRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	if _, err := h.client.RemoveRule(ctx, name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remove rule: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Rule %q removed.", name)), nil
}

// HandleRecentAssessments fetches assessment history for a wallet.
func (h *Handlers) HandleRecentAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet := req.GetString("wallet", "")
	if wallet == "" {
		return mcp.NewToolResultError("wallet is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.RecentAssessments(ctx, wallet, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

type assessmentInfo struct {
	ID      string           `json:"id"`
	Wallet  string           `json:"wallet"`
	Score   int              `json:"score"`
	Level   string           `json:"level"`
	Blocked bool             `json:"blocked"`
	Reason  string           `json:"reason"`
	Threats []map[string]any `json:"threats"`
}

func formatAssessment(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessment assessmentInfo `json:"assessment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	a := resp.Assessment

	var sb strings.Builder
	verdict := "ALLOW"
	if a.Blocked {
		verdict = "BLOCK"
	}
	fmt.Fprintf(&sb, "Verdict: %s\n", verdict)
	fmt.Fprintf(&sb, "Risk: %d/100 (%s)\n", a.Score, a.Level)
	if a.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", a.Reason)
	}

	if len(a.Threats) == 0 {
		sb.WriteString("\nNo threats detected.")
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "\n%d threat(s) detected:\n", len(a.Threats))
	for i, t := range a.Threats {
		kind, _ := t["type"].(string)
		if kind == "" {
			kind, _ = t["kind"].(string)
		}
		severity, _ := t["severity"].(string)
		title, _ := t["title"].(string)
		desc, _ := t["description"].(string)
		fmt.Fprintf(&sb, "%d. [%s] %s: %s\n", i+1, severity, kind, title)
		if desc != "" {
			fmt.Fprintf(&sb, "   %s\n", desc)
		}
	}
	return sb.String(), nil
}

func formatAssessmentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Wallet      string           `json:"wallet"`
		Assessments []assessmentInfo `json:"assessments"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Assessments) == 0 {
		return fmt.Sprintf("No assessments recorded for %s.", resp.Wallet), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d assessment(s) for %s:\n\n", len(resp.Assessments), resp.Wallet)
	for i, a := range resp.Assessments {
		verdict := "allowed"
		if a.Blocked {
			verdict = "BLOCKED"
		}
		fmt.Fprintf(&sb, "%d. %s: score %d (%s), %s, %d threat(s)\n",
			i+1, a.ID, a.Score, a.Level, verdict, len(a.Threats))
		if a.Reason != "" {
			fmt.Fprintf(&sb, "   %s\n", a.Reason)
		}
	}
	return sb.String(), nil
}

func formatRuleList(raw json.RawMessage) (string, error) {
	var resp struct {
		Rules []map[string]any `json:"rules"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Rules) == 0 {
		return "No custom rules configured.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d rule(s) configured:\n\n", len(resp.Rules))
	for i, r := range resp.Rules {
		name, _ := r["name"].(string)
		severity, _ := r["severity"].(string)
		desc, _ := r["description"].(string)
		blocking, _ := r["blocking"].(bool)
		mode := "advisory"
		if blocking {
			mode = "blocking"
		}
		fmt.Fprintf(&sb, "%d. %s [%s, %s]\n", i+1, name, severity, mode)
		if desc != "" {
			fmt.Fprintf(&sb, "   %s\n", desc)
		}
		if cond, ok := r["condition"].(map[string]any); ok {
			fmt.Fprintf(&sb, "   Condition: %s\n", formatCondition(cond))
		}
	}
	return sb.String(), nil
}

func formatCondition(cond map[string]any) string {
	condType, _ := cond["type"].(string)
	params, ok := cond["params"]
	if !ok || params == nil {
		return condType
	}
	var pretty bytes.Buffer
	data, err := json.Marshal(params)
	if err != nil {
		return condType
	}
	if json.Compact(&pretty, data) != nil {
		return condType
	}
	return condType + " " + pretty.String()
}
