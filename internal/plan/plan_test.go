package plan

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"opsagent/internal/llm"
	"opsagent/internal/triage"
)

type fakeProvider struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeProvider) Init(llm.Config) error                 { return nil }
func (f *fakeProvider) DefaultModel() string                  { return "fake" }
func (f *fakeProvider) AllowedModelOrDefault(m string) string { return m }
func (f *fakeProvider) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}
func (f *fakeProvider) GenerateJSON(_ context.Context, prompt, _ string, _ any) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}
func (f *fakeProvider) GenerateVisionJSON(_ context.Context, prompt string, _ []byte, _ string, _ any) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func TestGenerate(t *testing.T) {
	analysis := &triage.ProblemAnalysis{
		Category:        "mes",
		Subcategory:     "order_sync",
		Severity:        triage.SeverityHigh,
		AffectedSystems: []string{"mes"},
		RequiredActions: []string{"restart sync job", "verify backlog drained"},
		SuggestedMethod: triage.ChannelAPI,
		Confidence:      0.85,
	}

	testCases := []struct {
		name      string
		response  string
		wantSteps []string
		wantErr   bool
	}{
		{
			name:      "Valid plan",
			response:  `{"steps":["call mes connector endpoint restart_job","call mes connector endpoint job_status"]}`,
			wantSteps: []string{"call mes connector endpoint restart_job", "call mes connector endpoint job_status"},
		},
		{
			name:     "Unparseable response",
			response: "first restart the job, then check status",
			wantErr:  true,
		},
		{
			name:     "Empty step list",
			response: `{"steps":[]}`,
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			llm.SetProvider(&fakeProvider{response: tc.response}, "fake")

			p, err := Generate(context.Background(), analysis, triage.ChannelAPI)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Channel != triage.ChannelAPI {
				t.Errorf("channel: got %q, want %q", p.Channel, triage.ChannelAPI)
			}
			if !reflect.DeepEqual(p.Steps, tc.wantSteps) {
				t.Errorf("steps mismatch:\n got:  %v\n want: %v", p.Steps, tc.wantSteps)
			}
		})
	}
}

func TestPlanPromptCarriesRequiredActions(t *testing.T) {
	fake := &fakeProvider{response: `{"steps":["x"]}`}
	llm.SetProvider(fake, "fake")

	analysis := &triage.ProblemAnalysis{
		Category:        "scada",
		Severity:        triage.SeverityMedium,
		RequiredActions: []string{"acknowledge alarm 4711"},
		SuggestedMethod: triage.ChannelRPA,
	}
	if _, err := Generate(context.Background(), analysis, triage.ChannelRPA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(fake.lastPrompt, "acknowledge alarm 4711") {
		t.Error("plan prompt does not include the required actions")
	}
	if !strings.Contains(fake.lastPrompt, "GUI sub-goal") {
		t.Error("plan prompt does not scope steps to the rpa channel")
	}
}
