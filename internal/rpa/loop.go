package rpa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"opsagent/internal/llm"
)

// Session is the GUI surface the runner drives. *browser.Session satisfies
// it; tests install scripted fakes.
type Session interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, x, y int) error
	DoubleClick(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Scroll(ctx context.Context, deltaX, deltaY int) error
	MoveMouse(ctx context.Context, x, y int) error
	Drag(ctx context.Context, fromX, fromY, toX, toY int) error
	FindElement(ctx context.Context, query string) (string, error)
}

const (
	DefaultMaxSteps       = 50
	DefaultSettleInterval = 500 * time.Millisecond

	// How many prior actions the decision prompt replays as memory.
	maxRecentActions = 5
)

// Runner drives the perception-action loop: capture the screen, ask the
// vision model for the next action, inject it, and repeat until the model
// signals completion or the step budget runs out.
type Runner struct {
	MaxSteps           int
	SettleInterval     time.Duration
	DegradeOnMalformed bool
	logger             *zap.Logger
}

func NewRunner(maxSteps int, settle time.Duration, degradeOnMalformed bool, logger *zap.Logger) *Runner {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if settle < 0 {
		settle = DefaultSettleInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		MaxSteps:           maxSteps,
		SettleInterval:     settle,
		DegradeOnMalformed: degradeOnMalformed,
		logger:             logger.With(zap.String("component", "rpa_runner")),
	}
}

// decision is the wire shape of one loop iteration's model output.
type decision struct {
	Completed bool            `json:"completed"`
	Reasoning string          `json:"reasoning,omitempty"`
	Action    *actionEnvelope `json:"action,omitempty"`
}

var decisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"completed": map[string]any{"type": "boolean"},
		"reasoning": map[string]any{"type": "string"},
		"action": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":        map[string]any{"type": "string"},
				"x":           map[string]any{"type": "integer"},
				"y":           map[string]any{"type": "integer"},
				"text":        map[string]any{"type": "string"},
				"key":         map[string]any{"type": "string"},
				"delta_x":     map[string]any{"type": "integer"},
				"delta_y":     map[string]any{"type": "integer"},
				"from_x":      map[string]any{"type": "integer"},
				"from_y":      map[string]any{"type": "integer"},
				"to_x":        map[string]any{"type": "integer"},
				"to_y":        map[string]any{"type": "integer"},
				"duration_ms": map[string]any{"type": "integer"},
				"query":       map[string]any{"type": "string"},
				"fields":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	},
	"required": []string{"completed"},
}

// ExecuteTask runs the loop for one task. It never panics and never returns
// an error value: every outcome, faults included, lands in the result. On a
// fault the actions and screenshots gathered so far stay in place.
func (r *Runner) ExecuteTask(ctx context.Context, task *ComputerUseTask, session Session) *ComputerUseResult {
	start := time.Now()
	result := &ComputerUseResult{
		TaskID:        task.ID,
		ExtractedData: map[string]any{},
	}
	defer func() { result.Duration = time.Since(start) }()

	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	steps := r.planSteps(ctx, task)
	r.logger.Info("starting task",
		zap.String("task_id", task.ID),
		zap.Int("planned_steps", len(steps)),
		zap.Int("max_steps", r.MaxSteps))

	for i := 0; i < r.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail(result, fmt.Errorf("task %s interrupted: %w", task.ID, err))
		}
		result.Steps = i + 1

		shot, err := session.Screenshot(ctx)
		if err != nil {
			return r.fail(result, fmt.Errorf("capture screenshot: %w", err))
		}
		result.Screenshots = append(result.Screenshots, shot)

		dec, err := r.decideNext(ctx, task, steps, shot, result.Actions)
		if err != nil {
			return r.fail(result, err)
		}
		if dec == nil || dec.Completed || dec.Action == nil {
			r.logger.Info("task completed", zap.String("task_id", task.ID), zap.Int("steps", result.Steps))
			result.Success = true
			return result
		}

		action, err := decodeAction(*dec.Action)
		if err != nil {
			// An unknown action tag is never degraded away: it means the
			// contract between model and runner is broken.
			return r.fail(result, err)
		}

		if err := r.apply(ctx, session, action, result); err != nil {
			return r.fail(result, fmt.Errorf("apply %s: %w", Describe(action), err))
		}
		result.Actions = append(result.Actions, action)
		r.logger.Debug("applied action", zap.String("task_id", task.ID), zap.String("action", Describe(action)))

		if r.SettleInterval > 0 {
			time.Sleep(r.SettleInterval)
		}
	}

	// Exhausting the budget is a normal stop, not a fault. The trace tells
	// the operator how far the flow got.
	r.logger.Warn("step budget exhausted", zap.String("task_id", task.ID), zap.Int("max_steps", r.MaxSteps))
	result.Success = true
	return result
}

func (r *Runner) fail(result *ComputerUseResult, err error) *ComputerUseResult {
	r.logger.Error("task failed", zap.String("task_id", result.TaskID), zap.Error(err))
	result.Success = false
	result.Error = err.Error()
	return result
}

// apply injects one action into the session. The switch is exhaustive over
// the Action sum; decodeAction already rejected unknown tags.
func (r *Runner) apply(ctx context.Context, session Session, action Action, result *ComputerUseResult) error {
	switch a := action.(type) {
	case Click:
		return session.Click(ctx, a.X, a.Y)
	case DoubleClick:
		return session.DoubleClick(ctx, a.X, a.Y)
	case TypeText:
		return session.TypeText(ctx, a.Text)
	case KeyPress:
		return session.PressKey(ctx, a.Key)
	case Scroll:
		return session.Scroll(ctx, a.DeltaX, a.DeltaY)
	case Move:
		return session.MoveMouse(ctx, a.X, a.Y)
	case Drag:
		return session.Drag(ctx, a.FromX, a.FromY, a.ToX, a.ToY)
	case Screenshot:
		shot, err := session.Screenshot(ctx)
		if err != nil {
			return err
		}
		result.Screenshots = append(result.Screenshots, shot)
		return nil
	case Wait:
		time.Sleep(a.Duration)
		return nil
	case FindElement:
		desc, err := session.FindElement(ctx, a.Query)
		if err != nil {
			// A miss is perception feedback, not a fault. The model sees
			// the unchanged screen next iteration and adjusts.
			r.logger.Debug("find_element miss", zap.String("query", a.Query), zap.Error(err))
			return nil
		}
		result.ExtractedData["element:"+a.Query] = desc
		return nil
	case ReadScreen:
		return r.readScreen(ctx, session, a, result)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedAction, action)
	}
}

// readScreen runs a dedicated extraction pass over the current screen and
// shallow-merges the fields into the accumulated data, newest value winning.
func (r *Runner) readScreen(ctx context.Context, session Session, a ReadScreen, result *ComputerUseResult) error {
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("Extract data from this application screenshot as a STRICT JSON object. Respond ONLY with JSON.\n")
	if len(a.Fields) > 0 {
		sb.WriteString("Fields of interest: ")
		sb.WriteString(strings.Join(a.Fields, ", "))
		sb.WriteString("\n")
	} else {
		sb.WriteString("Extract every labeled value visible on screen.\n")
	}
	sb.WriteString("Use the visible labels as keys. Omit fields that are not on screen.\n")
	sb.WriteString("Assistant: ")

	raw, err := llm.GenerateVisionJSON(ctx, sb.String(), shot, "", nil)
	if err != nil {
		return fmt.Errorf("read screen: %w", err)
	}

	extracted := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		if !r.DegradeOnMalformed {
			return fmt.Errorf("read screen: malformed extraction: %w", err)
		}
		r.logger.Warn("discarding malformed extraction output", zap.Error(err))
		return nil
	}
	for k, v := range extracted {
		result.ExtractedData[k] = v
	}
	return nil
}

func buildPlanStepsPrompt(task *ComputerUseTask) string {
	var sb strings.Builder

	sb.WriteString("You are an expert GUI automation planner for industrial operations software. ")
	sb.WriteString("Break the task into short imperative UI steps. Respond ONLY with JSON: {\"steps\": [<strings>]}.\n\n")

	sb.WriteString(fmt.Sprintf("Task: %s\n", task.Name))
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", task.Description))
	}
	sb.WriteString(fmt.Sprintf("Instructions: %s\n", task.Instructions))
	if task.TargetApplication != "" {
		sb.WriteString(fmt.Sprintf("Target application: %s\n", task.TargetApplication))
	}
	if len(task.Inputs) > 0 {
		if data, err := json.Marshal(task.Inputs); err == nil {
			sb.WriteString(fmt.Sprintf("Inputs: %s\n", data))
		}
	}
	sb.WriteString("Assistant: ")

	return sb.String()
}

var planStepsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"steps"},
}

// planSteps asks for an up-front step outline. The outline only steers the
// per-iteration prompts, so any failure here degrades to an empty plan and
// the loop proceeds on the raw instructions.
func (r *Runner) planSteps(ctx context.Context, task *ComputerUseTask) []string {
	raw, err := llm.GenerateJSON(ctx, buildPlanStepsPrompt(task), "", planStepsSchema)
	if err != nil {
		r.logger.Warn("step planning failed, proceeding without outline", zap.Error(err))
		return nil
	}
	var parsed struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		r.logger.Warn("unparseable step outline, proceeding without it", zap.Error(err))
		return nil
	}
	return parsed.Steps
}

func buildDecidePrompt(task *ComputerUseTask, steps []string, history []Action) string {
	var sb strings.Builder

	sb.WriteString("You are controlling a GUI to resolve an industrial operations task. ")
	sb.WriteString("Look at the screenshot and decide the single next action. Respond ONLY with JSON.\n\n")

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString("{\"completed\": <bool>, \"reasoning\": \"<string>\", \"action\": {\"type\": \"click|double_click|type|key|scroll|move|drag|screenshot|wait|find_element|read_screen\", ...}}\n")
	sb.WriteString("Set completed=true and omit action when the task is done.\n")
	sb.WriteString("Action fields: click/double_click/move need x,y. type needs text. key needs key. ")
	sb.WriteString("scroll needs delta_x,delta_y. drag needs from_x,from_y,to_x,to_y. wait needs duration_ms. ")
	sb.WriteString("find_element needs query. read_screen takes optional fields.\n\n")

	sb.WriteString(fmt.Sprintf("Task: %s\n", task.Name))
	sb.WriteString(fmt.Sprintf("Instructions: %s\n", task.Instructions))
	if len(task.Inputs) > 0 {
		if data, err := json.Marshal(task.Inputs); err == nil {
			sb.WriteString(fmt.Sprintf("Inputs: %s\n", data))
		}
	}
	if len(steps) > 0 {
		sb.WriteString("Planned steps:\n")
		for i, step := range steps {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
		}
	}
	if len(history) > 0 {
		recent := history
		if len(recent) > maxRecentActions {
			recent = recent[len(recent)-maxRecentActions:]
		}
		sb.WriteString("Recent actions:\n")
		for _, a := range recent {
			sb.WriteString("- ")
			sb.WriteString(Describe(a))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Assistant: ")

	return sb.String()
}

// decideNext asks the vision model for the next action. Transport failures
// are faults; an empty or unparseable body is treated as completion when
// DegradeOnMalformed is set, so a confused model ends the flow instead of
// wedging it.
func (r *Runner) decideNext(ctx context.Context, task *ComputerUseTask, steps []string, shot []byte, history []Action) (*decision, error) {
	raw, err := llm.GenerateVisionJSON(ctx, buildDecidePrompt(task, steps, history), shot, "", decisionSchema)
	if err != nil {
		return nil, fmt.Errorf("decide next action: %w", err)
	}

	if strings.TrimSpace(raw) == "" {
		if !r.DegradeOnMalformed {
			return nil, fmt.Errorf("decide next action: empty model response")
		}
		r.logger.Warn("empty decision, treating as completion", zap.String("task_id", task.ID))
		return &decision{Completed: true}, nil
	}

	var dec decision
	if err := json.Unmarshal([]byte(raw), &dec); err != nil {
		if !r.DegradeOnMalformed {
			return nil, fmt.Errorf("decide next action: malformed model response: %w", err)
		}
		r.logger.Warn("unparseable decision, treating as completion",
			zap.String("task_id", task.ID), zap.Error(err))
		return &decision{Completed: true}, nil
	}
	return &dec, nil
}

var screenElementsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"elements": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":           map[string]any{"type": "string"},
					"type":         map[string]any{"type": "string"},
					"text":         map[string]any{"type": "string"},
					"bounds":       map[string]any{"type": "object"},
					"interactable": map[string]any{"type": "boolean"},
					"confidence":   map[string]any{"type": "number"},
				},
			},
		},
	},
	"required": []string{"elements"},
}

// AnalyzeScreen locates UI elements on a screenshot via the vision model.
// A malformed response degrades to an empty list; only transport failures
// surface as errors.
func AnalyzeScreen(ctx context.Context, screenshot []byte) ([]ScreenElement, error) {
	var sb strings.Builder
	sb.WriteString("List every UI element visible in this screenshot as STRICT JSON: ")
	sb.WriteString("{\"elements\": [{\"id\": \"<string>\", \"type\": \"button|input|link|label|menu|other\", ")
	sb.WriteString("\"text\": \"<string>\", \"bounds\": {\"x\": <int>, \"y\": <int>, \"width\": <int>, \"height\": <int>}, ")
	sb.WriteString("\"interactable\": <bool>, \"confidence\": <number 0..1>}]}. Respond ONLY with JSON.\n")
	sb.WriteString("Assistant: ")

	raw, err := llm.GenerateVisionJSON(ctx, sb.String(), screenshot, "", screenElementsSchema)
	if err != nil {
		return nil, fmt.Errorf("analyze screen: %w", err)
	}

	var parsed struct {
		Elements []ScreenElement `json:"elements"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil
	}
	return parsed.Elements, nil
}
