package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"opsagent/internal/llm"
)

var (
	ErrClassificationEmpty     = errors.New("classification: empty model response")
	ErrClassificationMalformed = errors.New("classification: malformed model response")
)

var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"category":         map[string]any{"type": "string"},
		"subcategory":      map[string]any{"type": "string"},
		"severity":         map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
		"affected_systems": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"required_actions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"suggested_method": map[string]any{"type": "string", "enum": []string{"api", "mcp", "rpa"}},
		"confidence":       map[string]any{"type": "number"},
		"reasoning":        map[string]any{"type": "string"},
	},
	"required": []string{"category", "severity", "suggested_method", "confidence"},
}

func buildClassifyPrompt(reportText string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert industrial operations incident classifier for MES, SCADA, ERP and OA systems. ")
	sb.WriteString("Classify the problem report into a STRICT JSON object. Respond ONLY with JSON. No extra text.\n\n")

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString("{\"category\": \"<string>\", \"subcategory\": \"<string>\", \"severity\": \"low|medium|high|critical\", ")
	sb.WriteString("\"affected_systems\": [<strings>], \"required_actions\": [<strings, ordered>], ")
	sb.WriteString("\"suggested_method\": \"api|mcp|rpa\", \"confidence\": <number 0..1>, \"reasoning\": \"<string>\"}\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("- suggested_method=api when the affected system exposes a structured API connector (mes, scada, erp, oa).\n")
	sb.WriteString("- suggested_method=mcp when an external tool server is the right vehicle (diagnostics, ticketing, data export).\n")
	sb.WriteString("- suggested_method=rpa only when no structured channel exists and a GUI must be driven.\n")
	sb.WriteString("- required_actions is the ordered list of concrete remediation actions.\n")
	sb.WriteString("- confidence reflects how certain you are about the chosen method, in [0,1].\n\n")

	sb.WriteString("Classify this problem report:\n")
	sb.WriteString(fmt.Sprintf("Report: \"%s\"\n", reportText))
	sb.WriteString("Assistant: ")

	return sb.String()
}

// Classify turns a free-text report into a ProblemAnalysis with exactly one
// model invocation. No retry here; failures surface to the engine.
func Classify(ctx context.Context, reportText string) (*ProblemAnalysis, error) {
	if strings.TrimSpace(reportText) == "" {
		return nil, fmt.Errorf("%w: blank report", ErrClassificationEmpty)
	}

	raw, err := llm.GenerateJSON(ctx, buildClassifyPrompt(reportText), "", analysisSchema)
	if err != nil {
		return nil, fmt.Errorf("classify report: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrClassificationEmpty
	}

	var analysis ProblemAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationMalformed, err)
	}
	if err := validateAnalysis(&analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// An out-of-range confidence or an unknown method tag is a classification
// error, never a silent default.
func validateAnalysis(a *ProblemAnalysis) error {
	if !a.SuggestedMethod.Valid() {
		return fmt.Errorf("%w: unknown suggested_method %q", ErrClassificationMalformed, a.SuggestedMethod)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrClassificationMalformed, a.Confidence)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrClassificationMalformed, a.Severity)
	}
	return nil
}
