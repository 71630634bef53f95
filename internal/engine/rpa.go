package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opsagent/internal/browser"
	"opsagent/internal/plan"
	"opsagent/internal/rpa"
	"opsagent/internal/triage"
)

// sessionPool is the slice of browser.Pool the executor needs.
type sessionPool interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session)
}

// RPAExecutor resolves problems by driving a GUI through the
// perception-action runner. Sessions come from the shared pool and are
// released on every exit path.
type RPAExecutor struct {
	pool    sessionPool
	runner  *rpa.Runner
	timeout time.Duration
	logger  *zap.Logger
}

func NewRPAExecutor(pool *browser.Pool, runner *rpa.Runner, taskTimeout time.Duration, logger *zap.Logger) *RPAExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPAExecutor{
		pool:    pool,
		runner:  runner,
		timeout: taskTimeout,
		logger:  logger.With(zap.String("component", "rpa_executor")),
	}
}

func (e *RPAExecutor) Name() string { return "rpa" }

func (e *RPAExecutor) Execute(ctx context.Context, analysis *triage.ProblemAnalysis, p *plan.ExecutionPlan) (*ChannelResult, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser session: %w", err)
	}
	defer e.pool.Release(session)

	task := buildComputerUseTask(analysis, p, e.timeout)
	e.logger.Info("running GUI task",
		zap.String("task_id", task.ID),
		zap.String("target", task.TargetApplication))

	result := e.runner.ExecuteTask(ctx, task, session)

	channelResult := &ChannelResult{
		Success: result.Success,
		Error:   result.Error,
		Data: map[string]any{
			"task_id":     result.TaskID,
			"steps":       result.Steps,
			"actions":     result.ActionLog(),
			"screenshots": len(result.Screenshots),
			"duration_ms": result.Duration.Milliseconds(),
		},
	}
	for k, v := range result.ExtractedData {
		channelResult.Data[k] = v
	}
	return channelResult, nil
}

// buildComputerUseTask folds the classified problem and its plan into one
// task description for the runner.
func buildComputerUseTask(analysis *triage.ProblemAnalysis, p *plan.ExecutionPlan, timeout time.Duration) *rpa.ComputerUseTask {
	target := ""
	if len(analysis.AffectedSystems) > 0 {
		target = analysis.AffectedSystems[0]
	}

	var sb strings.Builder
	sb.WriteString("Resolve the following operations problem through the application interface.\n")
	sb.WriteString(fmt.Sprintf("Problem: %s / %s (severity %s)\n", analysis.Category, analysis.Subcategory, analysis.Severity))
	sb.WriteString("Steps:\n")
	for i, step := range p.Steps {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}

	return &rpa.ComputerUseTask{
		ID:                uuid.New().String()[:8],
		Name:              analysis.Category,
		Description:       analysis.Reasoning,
		Instructions:      sb.String(),
		TargetApplication: target,
		Timeout:           timeout,
	}
}
