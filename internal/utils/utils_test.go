package utils

import "testing"

func TestHasRiskySteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  bool
	}{
		{"safe steps", []string{"open the console", "check order status"}, false},
		{"shutdown step", []string{"check status", "Shutdown line 3 controller"}, true},
		{"interlock override", []string{"override interlock on press 2"}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRiskySteps(tt.steps); got != tt.want {
				t.Errorf("HasRiskySteps(%v) = %v, want %v", tt.steps, got, tt.want)
			}
		})
	}
}

func TestGetStringPayload(t *testing.T) {
	payload := map[string]any{"text": "pump alarm", "count": 3}

	if v, err := GetStringPayload(payload, "text"); err != nil || v != "pump alarm" {
		t.Errorf("got (%q, %v)", v, err)
	}
	if _, err := GetStringPayload(payload, "missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := GetStringPayload(payload, "count"); err == nil {
		t.Error("expected error for non-string value")
	}
}

func TestGetIntPayload(t *testing.T) {
	payload := map[string]any{"a": float64(7), "b": "12", "c": "x"}

	if v, err := GetIntPayload(payload, "a"); err != nil || v != 7 {
		t.Errorf("got (%d, %v)", v, err)
	}
	if v, err := GetIntPayload(payload, "b"); err != nil || v != 12 {
		t.Errorf("got (%d, %v)", v, err)
	}
	if _, err := GetIntPayload(payload, "c"); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"http://mes.local/orders", "/detail?id=1", "http://mes.local/detail?id=1"},
		{"http://mes.local/orders", "http://scada.local/x", "http://scada.local/x"},
		{"", "/detail", "/detail"},
	}
	for _, tt := range tests {
		if got := Absolute(tt.base, tt.href); got != tt.want {
			t.Errorf("Absolute(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
