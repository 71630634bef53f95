package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"opsagent/internal/connector"
	"opsagent/internal/plan"
	"opsagent/internal/triage"
)

// APIExecutor drives structured domain connectors (MES, SCADA, ERP, OA).
type APIExecutor struct {
	registry *connector.Registry
	logger   *zap.Logger
}

func NewAPIExecutor(registry *connector.Registry, logger *zap.Logger) *APIExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIExecutor{
		registry: registry,
		logger:   logger.With(zap.String("component", "api_executor")),
	}
}

func (e *APIExecutor) Name() string { return "api" }

// Execute calls the connector named by the analysis, one call per plan step.
// An unknown system is a hard fault (connector.ErrNotFound wrapped); a call
// that runs but reports failure just flips the aggregate verdict.
func (e *APIExecutor) Execute(ctx context.Context, analysis *triage.ProblemAnalysis, p *plan.ExecutionPlan) (*ChannelResult, error) {
	conn, err := e.resolveConnector(analysis)
	if err != nil {
		return nil, err
	}

	endpoints := conn.Endpoints()
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("connector %q exposes no endpoints", conn.Name())
	}

	result := &ChannelResult{Success: true, Data: map[string]any{}}
	for i, step := range p.Steps {
		endpoint := matchEndpoint(endpoints, step)
		params := map[string]any{
			"step":     step,
			"category": analysis.Category,
			"severity": string(analysis.Severity),
		}

		e.logger.Info("calling connector",
			zap.String("connector", conn.Name()),
			zap.String("endpoint", endpoint),
			zap.Int("step", i+1))

		resp, err := conn.Call(ctx, endpoint, params)
		if err != nil {
			return result, fmt.Errorf("call %s.%s: %w", conn.Name(), endpoint, err)
		}
		result.Data[fmt.Sprintf("step_%d", i+1)] = map[string]any{
			"endpoint": endpoint,
			"success":  resp.Success,
			"data":     resp.Data,
		}
		if !resp.Success {
			result.Success = false
			result.Error = fmt.Sprintf("%s.%s reported failure", conn.Name(), endpoint)
		}
	}
	return result, nil
}

// resolveConnector tries each affected system in order, then the category.
// Nothing registered under any of those names surfaces as ErrNotFound.
func (e *APIExecutor) resolveConnector(analysis *triage.ProblemAnalysis) (connector.Connector, error) {
	candidates := append([]string{}, analysis.AffectedSystems...)
	if analysis.Category != "" {
		candidates = append(candidates, analysis.Category)
	}

	var lastErr error
	for _, name := range candidates {
		conn, err := e.registry.Get(name)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: analysis names no systems", connector.ErrNotFound)
}

// matchEndpoint picks the endpoint a step mentions, falling back to the
// first one when no name appears in the step text.
func matchEndpoint(endpoints []string, step string) string {
	lower := strings.ToLower(step)
	for _, ep := range endpoints {
		if strings.Contains(lower, strings.ToLower(ep)) {
			return ep
		}
	}
	return endpoints[0]
}
