package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"opsagent/internal/mcp"
	"opsagent/internal/plan"
	"opsagent/internal/triage"
)

// toolBridge is the slice of mcp.Bridge the executor needs; tests install a
// scripted implementation.
type toolBridge interface {
	ListServers(ctx context.Context) ([]mcp.ServerInfo, error)
	ListTools(ctx context.Context, server string) ([]mcp.ToolInfo, error)
	CallTool(ctx context.Context, server, tool string, params map[string]any) (*mcp.ToolResult, error)
}

// ToolExecutor resolves problems through external tool servers reached via
// the MCP bridge CLI.
type ToolExecutor struct {
	bridge toolBridge
	logger *zap.Logger
}

func NewToolExecutor(bridge *mcp.Bridge, logger *zap.Logger) *ToolExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolExecutor{
		bridge: bridge,
		logger: logger.With(zap.String("component", "tool_executor")),
	}
}

func (e *ToolExecutor) Name() string { return "mcp" }

// Execute discovers the available servers and tools, picks the tool the plan
// points at, and invokes it once per plan step. Discovery faults and
// invocation faults surface as errors; a tool that answers with isError only
// flips the verdict.
func (e *ToolExecutor) Execute(ctx context.Context, analysis *triage.ProblemAnalysis, p *plan.ExecutionPlan) (*ChannelResult, error) {
	servers, err := e.bridge.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tool servers: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no tool servers configured")
	}

	result := &ChannelResult{Success: true, Data: map[string]any{}}
	for i, step := range p.Steps {
		server, tool, err := e.resolveTool(ctx, servers, step)
		if err != nil {
			return result, err
		}

		e.logger.Info("invoking tool",
			zap.String("server", server),
			zap.String("tool", tool),
			zap.Int("step", i+1))

		toolResult, err := e.bridge.CallTool(ctx, server, tool, map[string]any{
			"problem":      analysis.Category + "/" + analysis.Subcategory,
			"severity":     string(analysis.Severity),
			"instructions": step,
		})
		if err != nil {
			return result, err
		}

		result.Data[fmt.Sprintf("step_%d", i+1)] = map[string]any{
			"server":  server,
			"tool":    tool,
			"success": toolResult.Success,
			"content": toolResult.Content,
		}
		if !toolResult.Success {
			result.Success = false
			result.Error = toolResult.Error
		}
	}
	return result, nil
}

// resolveTool scans every enabled server's tools for a name the step text
// mentions. No mention at all falls back to the first tool of the first
// enabled server.
func (e *ToolExecutor) resolveTool(ctx context.Context, servers []mcp.ServerInfo, step string) (string, string, error) {
	lower := strings.ToLower(step)

	var fallbackServer, fallbackTool string
	for _, srv := range servers {
		if !srv.Enabled {
			continue
		}
		tools, err := e.bridge.ListTools(ctx, srv.Name)
		if err != nil {
			e.logger.Warn("tool discovery failed for server",
				zap.String("server", srv.Name), zap.Error(err))
			continue
		}
		for _, t := range tools {
			if fallbackServer == "" {
				fallbackServer, fallbackTool = srv.Name, t.Name
			}
			if strings.Contains(lower, strings.ToLower(t.Name)) {
				return srv.Name, t.Name, nil
			}
		}
	}
	if fallbackServer == "" {
		return "", "", fmt.Errorf("no tools discovered across %d servers", len(servers))
	}
	return fallbackServer, fallbackTool, nil
}
