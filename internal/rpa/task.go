package rpa

import "time"

// ComputerUseTask describes one GUI automation job handed to the runner.
// Instructions is the operator-facing narrative; Inputs carries structured
// values (order ids, form fields) the model may reference while acting.
type ComputerUseTask struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Instructions      string            `json:"instructions"`
	TargetApplication string            `json:"target_application,omitempty"`
	Inputs            map[string]any    `json:"inputs,omitempty"`
	Timeout           time.Duration     `json:"timeout,omitempty"`
	RequiresAuth      bool              `json:"requires_auth,omitempty"`
	Credentials       map[string]string `json:"-"`
}

// ComputerUseResult is the full trace of one runner invocation. Actions and
// Screenshots accumulate in order; on a fault they hold everything gathered
// before it, so a partial trace is still inspectable.
type ComputerUseResult struct {
	Success       bool           `json:"success"`
	TaskID        string         `json:"task_id"`
	Steps         int            `json:"steps"`
	Actions       []Action       `json:"-"`
	Screenshots   [][]byte       `json:"-"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
	Error         string         `json:"error,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

// ActionLog renders the action trace as strings, oldest first.
func (r *ComputerUseResult) ActionLog() []string {
	out := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		out = append(out, Describe(a))
	}
	return out
}

type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScreenElement is one UI element the vision model located on a screenshot.
type ScreenElement struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Text         string  `json:"text,omitempty"`
	Bounds       Bounds  `json:"bounds"`
	Interactable bool    `json:"interactable"`
	Confidence   float64 `json:"confidence"`
}
