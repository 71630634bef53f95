package mcp

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseServerList(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    []ServerInfo
		wantErr bool
	}{
		{
			name:  "Wrapped object",
			input: `{"servers":[{"name":"diagnostics","displayName":"Diagnostics","enabled":true}]}`,
			want:  []ServerInfo{{Name: "diagnostics", DisplayName: "Diagnostics", Enabled: true}},
		},
		{
			name:  "Bare array",
			input: `[{"name":"ticketing","enabled":false}]`,
			want:  []ServerInfo{{Name: "ticketing"}},
		},
		{
			name:    "Garbage",
			input:   "no servers configured",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseServerList([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("mismatch:\n got:  %v\n want: %v", got, tc.want)
			}
		})
	}
}

func TestParseToolList(t *testing.T) {
	got, err := parseToolList([]byte(`{"tools":[{"name":"export_log","description":"Export a log window"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "export_log" {
		t.Errorf("unexpected tools: %v", got)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{max: 10}
	n, err := b.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The writer must report full consumption so the child process never
	// blocks, while storing only the capped prefix.
	if n != 16 {
		t.Errorf("n = %d, want 16", n)
	}
	if b.buf.String() != "0123456789" {
		t.Errorf("stored %q, want first 10 bytes", b.buf.String())
	}
	if !b.truncated {
		t.Error("expected truncated=true")
	}

	if _, err := b.Write([]byte("more")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.buf.Len() != 10 {
		t.Error("writes past the cap must not grow the buffer")
	}
}

func TestNewBridgeDefaults(t *testing.T) {
	b := NewBridge("", 0, 0, 0)
	if b.command != "mcporter" {
		t.Errorf("command = %q, want mcporter", b.command)
	}
	if b.discoverTimeout != defaultDiscoverTimeout || b.callTimeout != defaultCallTimeout {
		t.Error("timeout defaults not applied")
	}
	if b.maxOutputBytes != defaultMaxOutputBytes {
		t.Error("output cap default not applied")
	}
}

func TestCallToolFallsBackToRawText(t *testing.T) {
	// /bin/echo prints its arguments back, which is not JSON; the bridge
	// must report success with the raw text instead of an error.
	b := NewBridge("/bin/echo", 0, 0, 0)

	result, err := b.CallTool(context.Background(), "diagnostics", "export_log", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success=true for unparseable tool output")
	}
	if !strings.Contains(result.Content, "diagnostics.export_log") {
		t.Errorf("raw content not preserved: %q", result.Content)
	}
}

func TestRunReportsStderrOnFailure(t *testing.T) {
	b := NewBridge("/bin/sh", 0, 0, 0)

	_, err := b.run(context.Background(), b.callTimeout, "-c", "echo boom >&2; exit 3")
	if !errors.Is(err, ErrToolInvocation) {
		t.Fatalf("error = %v, want ErrToolInvocation", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("stderr not captured in error: %v", err)
	}
}
