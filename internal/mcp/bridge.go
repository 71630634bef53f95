package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"opsagent/internal/logger"
)

var ErrToolInvocation = errors.New("tool invocation failed")

const (
	defaultDiscoverTimeout = 30 * time.Second
	defaultCallTimeout     = 60 * time.Second
	defaultMaxOutputBytes  = 10 * 1024 * 1024
)

// Bridge shells out to a local MCP bridge CLI for server discovery and tool
// invocation. Every exec carries a bounded timeout and a capped output
// buffer so a misbehaving server cannot exhaust the process.
type Bridge struct {
	command         string
	discoverTimeout time.Duration
	callTimeout     time.Duration
	maxOutputBytes  int64
}

func NewBridge(command string, discoverTimeout, callTimeout time.Duration, maxOutputBytes int64) *Bridge {
	if strings.TrimSpace(command) == "" {
		command = "mcporter"
	}
	if discoverTimeout <= 0 {
		discoverTimeout = defaultDiscoverTimeout
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = defaultMaxOutputBytes
	}
	return &Bridge{
		command:         command,
		discoverTimeout: discoverTimeout,
		callTimeout:     callTimeout,
		maxOutputBytes:  maxOutputBytes,
	}
}

// cappedBuffer drops bytes past max instead of growing without bound.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.truncated = true
		p = p[:remaining]
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *Bridge) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.command, args...)
	stdout := &cappedBuffer{max: b.maxOutputBytes}
	stderr := &cappedBuffer{max: 64 * 1024}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: %s %s timed out after %s", ErrToolInvocation, b.command, strings.Join(args, " "), timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.buf.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: %s", ErrToolInvocation, msg)
	}
	if stdout.truncated {
		logger.Log.Warn("bridge output truncated",
			zap.String("command", b.command),
			zap.Int64("cap_bytes", b.maxOutputBytes))
	}
	return stdout.buf.String(), nil
}

// ListServers enumerates the servers the bridge knows about.
func (b *Bridge) ListServers(ctx context.Context) ([]ServerInfo, error) {
	out, err := b.run(ctx, b.discoverTimeout, "list", "--json")
	if err != nil {
		return nil, err
	}
	return parseServerList([]byte(out))
}

// ListTools enumerates the tools of one server.
func (b *Bridge) ListTools(ctx context.Context, server string) ([]ToolInfo, error) {
	out, err := b.run(ctx, b.discoverTimeout, "tools", server, "--json")
	if err != nil {
		return nil, err
	}
	return parseToolList([]byte(out))
}

// CallTool invokes one tool. Bridge output that fails JSON parsing is
// returned as a successful result carrying the raw text.
func (b *Bridge) CallTool(ctx context.Context, server, tool string, params map[string]any) (*ToolResult, error) {
	args := []string{"call", server + "." + tool, "--output", "json"}
	if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal tool params: %w", err)
		}
		args = append(args, "--args", string(encoded))
	}

	out, err := b.run(ctx, b.callTimeout, args...)
	if err != nil {
		return nil, err
	}

	var result ToolResult
	if jerr := json.Unmarshal([]byte(out), &result); jerr != nil {
		// Fail-soft: raw text is still a usable answer.
		return &ToolResult{Success: true, Content: strings.TrimSpace(out)}, nil
	}
	if result.IsError {
		result.Success = false
		if result.Error == "" {
			result.Error = result.Content
		}
		return &result, nil
	}
	result.Success = true
	return &result, nil
}

// The bridge CLI has emitted both bare arrays and wrapped objects across
// versions; accept either shape.
func parseServerList(data []byte) ([]ServerInfo, error) {
	var wrapped struct {
		Servers []ServerInfo `json:"servers"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Servers) > 0 {
		return wrapped.Servers, nil
	}
	var servers []ServerInfo
	if err := json.Unmarshal(data, &servers); err == nil {
		return servers, nil
	}
	return nil, fmt.Errorf("unrecognized server list output: %s", truncateForErr(data))
}

func parseToolList(data []byte) ([]ToolInfo, error) {
	var wrapped struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Tools) > 0 {
		return wrapped.Tools, nil
	}
	var tools []ToolInfo
	if err := json.Unmarshal(data, &tools); err == nil {
		return tools, nil
	}
	return nil, fmt.Errorf("unrecognized tool list output: %s", truncateForErr(data))
}

func truncateForErr(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
