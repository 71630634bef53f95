package display

import (
	"fmt"
	"strings"

	"opsagent/internal/metrics"
)

func FormatResolutionMetrics(m *metrics.ResolutionMetrics) string {
	if m == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Resolution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v", m.DurationMs, m.Succeeded))
	if m.Channel != "" {
		sb.WriteString(fmt.Sprintf(", channel=%s", m.Channel))
	}
	sb.WriteString(")\n")
	for _, s := range m.Stages {
		status := "ok"
		if !s.Success {
			status = "err"
		}
		sb.WriteString(fmt.Sprintf("  %-10s %6d ms  [%s]", s.Name, s.DurationMs, status))
		if s.Err != "" {
			sb.WriteString("  " + s.Err)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
