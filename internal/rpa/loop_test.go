package rpa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"opsagent/internal/llm"
)

// fakeLLM scripts the model side of the loop. GenerateJSON serves the step
// outline; GenerateVisionJSON pops responses in order, so a test can
// interleave decisions and extraction payloads.
type fakeLLM struct {
	planResp    string
	planErr     error
	visionResps []string
	visionErr   error
	visionCalls int
}

func (f *fakeLLM) Init(llm.Config) error                  { return nil }
func (f *fakeLLM) DefaultModel() string                   { return "fake" }
func (f *fakeLLM) AllowedModelOrDefault(m string) string  { return "fake" }
func (f *fakeLLM) Generate(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeLLM) GenerateJSON(context.Context, string, string, any) (string, error) {
	return f.planResp, f.planErr
}

func (f *fakeLLM) GenerateVisionJSON(context.Context, string, []byte, string, any) (string, error) {
	if f.visionErr != nil {
		return "", f.visionErr
	}
	if f.visionCalls >= len(f.visionResps) {
		return `{"completed": true}`, nil
	}
	resp := f.visionResps[f.visionCalls]
	f.visionCalls++
	return resp, nil
}

// fakeSession records injected input and can be scripted to fail.
type fakeSession struct {
	screenshots   int
	screenshotErr error
	clicks        int
	clickErrAfter int // fail on the Nth click, 0 disables
	typed         []string
	keys          []string
	findResult    string
	findErr       error
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	s.screenshots++
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

func (s *fakeSession) Click(context.Context, int, int) error {
	s.clicks++
	if s.clickErrAfter > 0 && s.clicks >= s.clickErrAfter {
		return errors.New("target window closed")
	}
	return nil
}

func (s *fakeSession) DoubleClick(context.Context, int, int) error { return nil }

func (s *fakeSession) TypeText(_ context.Context, text string) error {
	s.typed = append(s.typed, text)
	return nil
}

func (s *fakeSession) PressKey(_ context.Context, key string) error {
	s.keys = append(s.keys, key)
	return nil
}

func (s *fakeSession) Scroll(context.Context, int, int) error     { return nil }
func (s *fakeSession) MoveMouse(context.Context, int, int) error  { return nil }
func (s *fakeSession) Drag(context.Context, int, int, int, int) error { return nil }

func (s *fakeSession) FindElement(context.Context, string) (string, error) {
	return s.findResult, s.findErr
}

func installFake(t *testing.T, f *fakeLLM) {
	t.Helper()
	llm.SetProvider(f, "fake")
	t.Cleanup(func() { llm.SetProvider(nil, "") })
}

func newTestRunner(maxSteps int, degrade bool) *Runner {
	return NewRunner(maxSteps, 0, degrade, nil)
}

func testTask() *ComputerUseTask {
	return &ComputerUseTask{
		ID:           "task-1",
		Name:         "Reset stuck work order",
		Instructions: "Open the MES console and reset work order WO-1042.",
		Inputs:       map[string]any{"order_id": "WO-1042"},
	}
}

func TestExecuteTaskCompletesOnFirstIteration(t *testing.T) {
	installFake(t, &fakeLLM{
		planResp:    `{"steps": ["open console"]}`,
		visionResps: []string{`{"completed": true, "reasoning": "already resolved"}`},
	})
	session := &fakeSession{}

	result := newTestRunner(10, true).ExecuteTask(context.Background(), testTask(), session)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(result.Screenshots) != 1 {
		t.Errorf("got %d screenshots, want exactly 1", len(result.Screenshots))
	}
	if len(result.Actions) != 0 {
		t.Errorf("got %d actions, want 0", len(result.Actions))
	}
	if result.Steps != 1 {
		t.Errorf("got %d steps, want 1", result.Steps)
	}
}

func TestExecuteTaskStopsAtStepBudget(t *testing.T) {
	// The model keeps clicking forever; only the budget ends the loop.
	clickForever := &fakeLLM{planResp: `{"steps": []}`}
	for i := 0; i < 100; i++ {
		clickForever.visionResps = append(clickForever.visionResps,
			`{"completed": false, "action": {"type": "click", "x": 100, "y": 200}}`)
	}
	installFake(t, clickForever)
	session := &fakeSession{}

	result := newTestRunner(2, true).ExecuteTask(context.Background(), testTask(), session)

	if !result.Success {
		t.Fatalf("budget exhaustion must not be a failure, got error %q", result.Error)
	}
	if len(result.Screenshots) != 2 {
		t.Errorf("got %d screenshots, want exactly 2", len(result.Screenshots))
	}
	if len(result.Actions) != 2 {
		t.Errorf("got %d actions, want 2", len(result.Actions))
	}
	if session.clicks != 2 {
		t.Errorf("session saw %d clicks, want 2", session.clicks)
	}
}

func TestExecuteTaskUnparseableDecisionCompletes(t *testing.T) {
	installFake(t, &fakeLLM{
		planResp:    `{"steps": []}`,
		visionResps: []string{`I think we should click somewhere`},
	})

	result := newTestRunner(10, true).ExecuteTask(context.Background(), testTask(), &fakeSession{})

	if !result.Success {
		t.Fatalf("degraded decision must complete the task, got error %q", result.Error)
	}
	if len(result.Actions) != 0 {
		t.Errorf("got %d actions, want 0", len(result.Actions))
	}
}

func TestExecuteTaskUnparseableDecisionFailsClosed(t *testing.T) {
	installFake(t, &fakeLLM{
		planResp:    `{"steps": []}`,
		visionResps: []string{`not json at all`},
	})

	result := newTestRunner(10, false).ExecuteTask(context.Background(), testTask(), &fakeSession{})

	if result.Success {
		t.Fatal("expected failure when degradation is disabled")
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
}

func TestExecuteTaskUnsupportedActionIsFatal(t *testing.T) {
	installFake(t, &fakeLLM{
		planResp:    `{"steps": []}`,
		visionResps: []string{`{"completed": false, "action": {"type": "hover", "x": 1, "y": 2}}`},
	})

	result := newTestRunner(10, true).ExecuteTask(context.Background(), testTask(), &fakeSession{})

	if result.Success {
		t.Fatal("an unknown action tag must fail the task")
	}
	if !strings.Contains(result.Error, "unsupported action type") {
		t.Errorf("error = %q, want it to name the unsupported action", result.Error)
	}
}

func TestExecuteTaskReadScreenShallowMerge(t *testing.T) {
	installFake(t, &fakeLLM{
		planResp: `{"steps": []}`,
		visionResps: []string{
			`{"completed": false, "action": {"type": "read_screen"}}`,
			`{"order_id": "WO-1042", "status": "stuck"}`,
			`{"completed": false, "action": {"type": "read_screen"}}`,
			`{"status": "released", "operator": "lin"}`,
			`{"completed": true}`,
		},
	})

	result := newTestRunner(10, true).ExecuteTask(context.Background(), testTask(), &fakeSession{})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	want := map[string]any{
		"order_id": "WO-1042",
		"status":   "released", // later extraction wins
		"operator": "lin",
	}
	for k, v := range want {
		if result.ExtractedData[k] != v {
			t.Errorf("extracted[%q] = %v, want %v", k, result.ExtractedData[k], v)
		}
	}
}

func TestExecuteTaskInjectionFailureKeepsPartialTrace(t *testing.T) {
	forever := &fakeLLM{planResp: `{"steps": []}`}
	for i := 0; i < 10; i++ {
		forever.visionResps = append(forever.visionResps,
			`{"completed": false, "action": {"type": "click", "x": 10, "y": 10}}`)
	}
	installFake(t, forever)
	session := &fakeSession{clickErrAfter: 2}

	result := newTestRunner(10, true).ExecuteTask(context.Background(), testTask(), session)

	if result.Success {
		t.Fatal("an injection fault must fail the task")
	}
	if len(result.Actions) != 1 {
		t.Errorf("got %d actions, want the 1 applied before the fault", len(result.Actions))
	}
	if len(result.Screenshots) != 2 {
		t.Errorf("got %d screenshots, want the 2 captured before the fault", len(result.Screenshots))
	}
	if !strings.Contains(result.Error, "target window closed") {
		t.Errorf("error = %q, want the underlying fault preserved", result.Error)
	}
}

func TestExecuteTaskScreenshotFaultFails(t *testing.T) {
	installFake(t, &fakeLLM{planResp: `{"steps": []}`})
	session := &fakeSession{screenshotErr: errors.New("display gone")}

	result := newTestRunner(5, true).ExecuteTask(context.Background(), testTask(), session)

	if result.Success {
		t.Fatal("a capture fault must fail the task")
	}
	if len(result.Screenshots) != 0 {
		t.Errorf("got %d screenshots, want 0", len(result.Screenshots))
	}
}

func TestExecuteTaskPlanFailureStillRuns(t *testing.T) {
	// The outline is advisory; losing it must not abort the loop.
	installFake(t, &fakeLLM{
		planErr:     errors.New("planner offline"),
		visionResps: []string{`{"completed": true}`},
	})

	result := newTestRunner(5, true).ExecuteTask(context.Background(), testTask(), &fakeSession{})

	if !result.Success {
		t.Fatalf("expected success without an outline, got error %q", result.Error)
	}
}

func TestAnalyzeScreenDegradesOnMalformed(t *testing.T) {
	installFake(t, &fakeLLM{visionResps: []string{`<<not json>>`}})

	elements, err := AnalyzeScreen(context.Background(), []byte{0x01})
	if err != nil {
		t.Fatalf("malformed output must degrade, got %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("got %d elements, want none", len(elements))
	}
}

func TestAnalyzeScreenParsesElements(t *testing.T) {
	installFake(t, &fakeLLM{visionResps: []string{
		`{"elements": [{"id": "btn-1", "type": "button", "text": "Release", "bounds": {"x": 10, "y": 20, "width": 80, "height": 24}, "interactable": true, "confidence": 0.92}]}`,
	}})

	elements, err := AnalyzeScreen(context.Background(), []byte{0x01})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(elements) != 1 || elements[0].ID != "btn-1" || !elements[0].Interactable {
		t.Errorf("elements = %+v", elements)
	}
}
