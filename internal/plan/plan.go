package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"opsagent/internal/llm"
	"opsagent/internal/triage"
)

// ExecutionPlan is an ordered list of natural-language steps scoped to one
// channel. Plans are generated once and consumed in order; re-planning
// creates a new plan, never patches one in place.
type ExecutionPlan struct {
	Channel triage.Channel `json:"channel"`
	Steps   []string       `json:"steps"`
}

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"steps"},
}

func buildPlanPrompt(a *triage.ProblemAnalysis, channel triage.Channel) string {
	var sb strings.Builder

	sb.WriteString("You are an expert industrial operations remediation planner. ")
	sb.WriteString("Break the classified problem into an ordered list of execution steps as STRICT JSON. ")
	sb.WriteString("Respond ONLY with JSON. No extra text.\n\n")

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString("{\"steps\": [\"<step 1>\", \"<step 2>\", ...]}\n\n")

	sb.WriteString("CHANNEL SEMANTICS:\n")
	switch channel {
	case triage.ChannelAPI:
		sb.WriteString("- Each step names a structured API call: which connector, which endpoint, which parameters.\n")
	case triage.ChannelMCP:
		sb.WriteString("- Each step names an external tool invocation: which tool server, which tool, which arguments.\n")
	case triage.ChannelRPA:
		sb.WriteString("- Each step is a GUI sub-goal (navigate, locate, click, fill, verify) for driving the target application's interface.\n")
	}

	sb.WriteString("\nCLASSIFIED PROBLEM:\n")
	sb.WriteString(fmt.Sprintf("Category: %s / %s\n", a.Category, a.Subcategory))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", a.Severity))
	sb.WriteString(fmt.Sprintf("Affected systems: %s\n", strings.Join(a.AffectedSystems, ", ")))
	if len(a.RequiredActions) > 0 {
		sb.WriteString("Required actions (ordered):\n")
		for i, action := range a.RequiredActions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, action))
		}
	}
	sb.WriteString(fmt.Sprintf("Reasoning: %s\n\n", a.Reasoning))

	sb.WriteString("Generate the steps now.\nAssistant: ")
	return sb.String()
}

// Generate produces the plan with a second model invocation, distinct from
// classification so the two stages stay independently retriable.
func Generate(ctx context.Context, a *triage.ProblemAnalysis, channel triage.Channel) (*ExecutionPlan, error) {
	raw, err := llm.GenerateJSON(ctx, buildPlanPrompt(a, channel), "", planSchema)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	var parsed struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse generated plan: %v\nRaw Response: %s", err, raw)
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("generated plan has no steps")
	}

	return &ExecutionPlan{Channel: channel, Steps: parsed.Steps}, nil
}
