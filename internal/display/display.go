package display

import (
	"fmt"
	"sort"
	"strings"

	"opsagent/internal/engine"
	"opsagent/internal/plan"
	"opsagent/internal/triage"
)

const maxValueLength = 100

func FormatAnalysis(a *triage.ProblemAnalysis) string {
	var sb strings.Builder
	sb.WriteString("Classification:\n")
	sb.WriteString(fmt.Sprintf("  Category:  %s / %s\n", a.Category, a.Subcategory))
	sb.WriteString(fmt.Sprintf("  Severity:  %s\n", a.Severity))
	sb.WriteString(fmt.Sprintf("  Channel:   %s (confidence %.2f)\n", a.SuggestedMethod, a.Confidence))
	if len(a.AffectedSystems) > 0 {
		sb.WriteString(fmt.Sprintf("  Systems:   %s\n", strings.Join(a.AffectedSystems, ", ")))
	}
	if len(a.RequiredActions) > 0 {
		sb.WriteString("  Actions:\n")
		for i, action := range a.RequiredActions {
			sb.WriteString(fmt.Sprintf("    %d. %s\n", i+1, action))
		}
	}
	return sb.String()
}

func FormatPlan(p *plan.ExecutionPlan) string {
	var sb strings.Builder
	sb.WriteString("Proposed execution plan:\n")
	sb.WriteString("--------------------------------------------------\n")
	sb.WriteString(fmt.Sprintf("Channel: %s\n", p.Channel))
	for i, step := range p.Steps {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

func FormatResult(r *engine.ExecutionResult) string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString(fmt.Sprintf("[Report %s RESOLVED via %s]\n", r.ReportID, r.Channel))
	} else {
		sb.WriteString(fmt.Sprintf("[Report %s FAILED] %s\n", r.ReportID, r.Error))
	}
	if r.Result != nil && len(r.Result.Data) > 0 {
		sb.WriteString("Data:\n")
		keys := make([]string, 0, len(r.Result.Data))
		for k := range r.Result.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, formatValue(r.Result.Data[k])))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatValue(value any) string {
	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > maxValueLength {
		return s[:maxValueLength] + "..."
	}
	return s
}
