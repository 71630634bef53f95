package rpa

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnsupportedAction = errors.New("unsupported action type")

type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionDoubleClick ActionType = "double_click"
	ActionTypeText    ActionType = "type"
	ActionKey         ActionType = "key"
	ActionScroll      ActionType = "scroll"
	ActionMove        ActionType = "move"
	ActionDrag        ActionType = "drag"
	ActionScreenshot  ActionType = "screenshot"
	ActionWait        ActionType = "wait"
	ActionFindElement ActionType = "find_element"
	ActionReadScreen  ActionType = "read_screen"
)

// Action is a closed sum over the kinds of GUI input the model can request.
// Each variant carries only the fields relevant to its tag; execution
// matches exhaustively, so a new kind is a compile-time-visible change.
type Action interface {
	Type() ActionType
}

type Click struct{ X, Y int }

func (Click) Type() ActionType { return ActionClick }

type DoubleClick struct{ X, Y int }

func (DoubleClick) Type() ActionType { return ActionDoubleClick }

type TypeText struct{ Text string }

func (TypeText) Type() ActionType { return ActionTypeText }

type KeyPress struct{ Key string }

func (KeyPress) Type() ActionType { return ActionKey }

type Scroll struct{ DeltaX, DeltaY int }

func (Scroll) Type() ActionType { return ActionScroll }

type Move struct{ X, Y int }

func (Move) Type() ActionType { return ActionMove }

type Drag struct{ FromX, FromY, ToX, ToY int }

func (Drag) Type() ActionType { return ActionDrag }

type Screenshot struct{}

func (Screenshot) Type() ActionType { return ActionScreenshot }

type Wait struct{ Duration time.Duration }

func (Wait) Type() ActionType { return ActionWait }

type FindElement struct{ Query string }

func (FindElement) Type() ActionType { return ActionFindElement }

type ReadScreen struct{ Fields []string }

func (ReadScreen) Type() ActionType { return ActionReadScreen }

// actionEnvelope is the wire shape the model emits for one action.
type actionEnvelope struct {
	Type       string   `json:"type"`
	X          int      `json:"x,omitempty"`
	Y          int      `json:"y,omitempty"`
	Text       string   `json:"text,omitempty"`
	Key        string   `json:"key,omitempty"`
	DeltaX     int      `json:"delta_x,omitempty"`
	DeltaY     int      `json:"delta_y,omitempty"`
	FromX      int      `json:"from_x,omitempty"`
	FromY      int      `json:"from_y,omitempty"`
	ToX        int      `json:"to_x,omitempty"`
	ToY        int      `json:"to_y,omitempty"`
	DurationMs int      `json:"duration_ms,omitempty"`
	Query      string   `json:"query,omitempty"`
	Fields     []string `json:"fields,omitempty"`
}

func decodeAction(env actionEnvelope) (Action, error) {
	switch ActionType(env.Type) {
	case ActionClick:
		return Click{X: env.X, Y: env.Y}, nil
	case ActionDoubleClick:
		return DoubleClick{X: env.X, Y: env.Y}, nil
	case ActionTypeText:
		return TypeText{Text: env.Text}, nil
	case ActionKey:
		return KeyPress{Key: env.Key}, nil
	case ActionScroll:
		return Scroll{DeltaX: env.DeltaX, DeltaY: env.DeltaY}, nil
	case ActionMove:
		return Move{X: env.X, Y: env.Y}, nil
	case ActionDrag:
		return Drag{FromX: env.FromX, FromY: env.FromY, ToX: env.ToX, ToY: env.ToY}, nil
	case ActionScreenshot:
		return Screenshot{}, nil
	case ActionWait:
		return Wait{Duration: time.Duration(env.DurationMs) * time.Millisecond}, nil
	case ActionFindElement:
		return FindElement{Query: env.Query}, nil
	case ActionReadScreen:
		return ReadScreen{Fields: env.Fields}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, env.Type)
	}
}

// Describe renders one action for logs and model memory.
func Describe(a Action) string {
	switch v := a.(type) {
	case Click:
		return fmt.Sprintf("click(%d,%d)", v.X, v.Y)
	case DoubleClick:
		return fmt.Sprintf("double_click(%d,%d)", v.X, v.Y)
	case TypeText:
		return fmt.Sprintf("type(%q)", v.Text)
	case KeyPress:
		return fmt.Sprintf("key(%s)", v.Key)
	case Scroll:
		return fmt.Sprintf("scroll(%d,%d)", v.DeltaX, v.DeltaY)
	case Move:
		return fmt.Sprintf("move(%d,%d)", v.X, v.Y)
	case Drag:
		return fmt.Sprintf("drag(%d,%d -> %d,%d)", v.FromX, v.FromY, v.ToX, v.ToY)
	case Screenshot:
		return "screenshot"
	case Wait:
		return fmt.Sprintf("wait(%s)", v.Duration)
	case FindElement:
		return fmt.Sprintf("find_element(%q)", v.Query)
	case ReadScreen:
		return "read_screen"
	default:
		return fmt.Sprintf("unknown(%T)", a)
	}
}
