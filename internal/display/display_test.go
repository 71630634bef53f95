package display

import (
	"strings"
	"testing"

	"opsagent/internal/engine"
	"opsagent/internal/metrics"
	"opsagent/internal/plan"
	"opsagent/internal/triage"
)

func TestFormatAnalysis(t *testing.T) {
	out := FormatAnalysis(&triage.ProblemAnalysis{
		Category:        "mes",
		Subcategory:     "work_order_stuck",
		Severity:        triage.SeverityHigh,
		AffectedSystems: []string{"mes", "scada"},
		RequiredActions: []string{"release the order"},
		SuggestedMethod: triage.ChannelAPI,
		Confidence:      0.9,
	})

	for _, want := range []string{"mes / work_order_stuck", "high", "api", "0.90", "1. release the order"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPlanNumbersSteps(t *testing.T) {
	out := FormatPlan(&plan.ExecutionPlan{
		Channel: triage.ChannelRPA,
		Steps:   []string{"open the console", "locate WO-1042"},
	})

	if !strings.Contains(out, "1. open the console") || !strings.Contains(out, "2. locate WO-1042") {
		t.Errorf("steps not numbered:\n%s", out)
	}
	if !strings.Contains(out, "Channel: rpa") {
		t.Errorf("channel missing:\n%s", out)
	}
}

func TestFormatResultTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", 500)
	out := FormatResult(&engine.ExecutionResult{
		Success:  true,
		ReportID: "rpt-1",
		Channel:  triage.ChannelAPI,
		Result:   &engine.ChannelResult{Success: true, Data: map[string]any{"dump": long}},
	})

	if strings.Contains(out, long) {
		t.Error("long value was not truncated")
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected truncation marker:\n%s", out)
	}
}

func TestFormatResolutionMetrics(t *testing.T) {
	m := metrics.NewResolution("rpt-1")
	idx := m.BeginStage("classify")
	m.EndStage(idx, nil)
	m.Channel = "api"
	m.Finalize(true)

	out := FormatResolutionMetrics(m)
	if !strings.Contains(out, "classify") || !strings.Contains(out, "channel=api") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if FormatResolutionMetrics(nil) != "No metrics available." {
		t.Error("nil metrics should degrade to a fixed message")
	}
}
