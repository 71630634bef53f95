package rpa

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name string
		env  actionEnvelope
		want Action
	}{
		{"click", actionEnvelope{Type: "click", X: 10, Y: 20}, Click{X: 10, Y: 20}},
		{"double click", actionEnvelope{Type: "double_click", X: 5, Y: 6}, DoubleClick{X: 5, Y: 6}},
		{"type", actionEnvelope{Type: "type", Text: "WO-1042"}, TypeText{Text: "WO-1042"}},
		{"key", actionEnvelope{Type: "key", Key: "Enter"}, KeyPress{Key: "Enter"}},
		{"scroll", actionEnvelope{Type: "scroll", DeltaX: 0, DeltaY: 300}, Scroll{DeltaY: 300}},
		{"move", actionEnvelope{Type: "move", X: 1, Y: 2}, Move{X: 1, Y: 2}},
		{"drag", actionEnvelope{Type: "drag", FromX: 1, FromY: 2, ToX: 3, ToY: 4}, Drag{FromX: 1, FromY: 2, ToX: 3, ToY: 4}},
		{"screenshot", actionEnvelope{Type: "screenshot"}, Screenshot{}},
		{"wait", actionEnvelope{Type: "wait", DurationMs: 1500}, Wait{Duration: 1500 * time.Millisecond}},
		{"find element", actionEnvelope{Type: "find_element", Query: "submit button"}, FindElement{Query: "submit button"}},
		{"read screen", actionEnvelope{Type: "read_screen", Fields: []string{"order_id"}}, ReadScreen{Fields: []string{"order_id"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAction(tt.env)
			if err != nil {
				t.Fatalf("decodeAction: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeAction = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeActionUnknownType(t *testing.T) {
	for _, typ := range []string{"hover", "", "CLICK"} {
		if _, err := decodeAction(actionEnvelope{Type: typ}); !errors.Is(err, ErrUnsupportedAction) {
			t.Errorf("type %q: got %v, want ErrUnsupportedAction", typ, err)
		}
	}
}

func TestDescribeCoversEveryVariant(t *testing.T) {
	actions := []Action{
		Click{X: 1, Y: 2}, DoubleClick{}, TypeText{Text: "x"}, KeyPress{Key: "Tab"},
		Scroll{}, Move{}, Drag{}, Screenshot{}, Wait{Duration: time.Second},
		FindElement{Query: "q"}, ReadScreen{},
	}
	for _, a := range actions {
		if Describe(a) == "" {
			t.Errorf("Describe(%T) is empty", a)
		}
	}
}
