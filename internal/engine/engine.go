package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"opsagent/internal/config"
	"opsagent/internal/metrics"
	"opsagent/internal/plan"
	"opsagent/internal/triage"
)

// ChannelResult is what an executor hands back: the channel's own verdict
// plus whatever structured data the flow produced.
type ChannelResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Executor runs a plan over one channel. Implementations return an error
// only for faults; a flow that ran but did not help reports Success=false
// inside the result.
type Executor interface {
	Name() string
	Execute(ctx context.Context, analysis *triage.ProblemAnalysis, p *plan.ExecutionPlan) (*ChannelResult, error)
}

// ExecutionResult is the aggregate outcome of one report. Whatever stage
// failed, the artifacts produced before it stay attached so the operator can
// see how far the pipeline got.
type ExecutionResult struct {
	Success  bool                       `json:"success"`
	ReportID string                     `json:"report_id"`
	Channel  triage.Channel             `json:"channel,omitempty"`
	Analysis *triage.ProblemAnalysis    `json:"analysis,omitempty"`
	Plan     *plan.ExecutionPlan        `json:"plan,omitempty"`
	Result   *ChannelResult             `json:"result,omitempty"`
	Error    string                     `json:"error,omitempty"`
	Metrics  *metrics.ResolutionMetrics `json:"metrics,omitempty"`
}

// Engine wires the pipeline: classify, select a channel, plan, execute.
type Engine struct {
	cfg       config.EngineConfig
	executors map[triage.Channel]Executor
	confirm   func(*plan.ExecutionPlan) bool
	logger    *zap.Logger
}

func New(cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		executors: make(map[triage.Channel]Executor),
		logger:    logger.With(zap.String("component", "engine")),
	}
}

// RegisterExecutor binds a channel to its executor. Later registrations for
// the same channel win.
func (e *Engine) RegisterExecutor(channel triage.Channel, ex Executor) {
	e.executors[channel] = ex
}

// SetPlanGate installs a hook that can veto a generated plan before it
// executes. The interactive CLI uses it to confirm risky remediation steps
// with the operator.
func (e *Engine) SetPlanGate(gate func(*plan.ExecutionPlan) bool) {
	e.confirm = gate
}

func stageCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// HandleProblem resolves one report end to end. It never panics and never
// returns an error: every failure lands in the result with the partial
// artifacts produced before it.
func (e *Engine) HandleProblem(ctx context.Context, report *triage.ProblemReport) *ExecutionResult {
	result := &ExecutionResult{ReportID: report.ID}
	m := metrics.NewResolution(report.ID)
	result.Metrics = m
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pipeline panic", zap.String("report_id", report.ID), zap.Any("panic", r))
			result.Success = false
			result.Error = fmt.Sprintf("internal fault: %v", r)
		}
		m.Finalize(result.Success)
	}()

	e.logger.Info("handling report", zap.String("report_id", report.ID))

	// Stage 1: classify.
	stage := m.BeginStage("classify")
	classifyCtx, cancel := stageCtx(ctx, e.cfg.ClassifyTimeout)
	analysis, err := triage.Classify(classifyCtx, report.Text)
	cancel()
	m.EndStage(stage, err)
	if err != nil {
		return e.failed(result, err)
	}
	result.Analysis = analysis

	channel := triage.Select(analysis)
	result.Channel = channel
	m.Channel = string(channel)
	e.logger.Info("report classified",
		zap.String("report_id", report.ID),
		zap.String("category", analysis.Category),
		zap.String("severity", string(analysis.Severity)),
		zap.String("channel", string(channel)),
		zap.Float64("confidence", analysis.Confidence))

	// Stage 2: plan.
	stage = m.BeginStage("plan")
	planCtx, cancel := stageCtx(ctx, e.cfg.PlanTimeout)
	p, err := plan.Generate(planCtx, analysis, channel)
	cancel()
	m.EndStage(stage, err)
	if err != nil {
		return e.failed(result, err)
	}
	result.Plan = p

	if e.confirm != nil && !e.confirm(p) {
		return e.failed(result, fmt.Errorf("plan rejected by operator"))
	}

	// Stage 3: execute over the selected channel.
	ex, ok := e.executors[channel]
	if !ok {
		err := fmt.Errorf("no executor registered for channel %q", channel)
		m.EndStage(m.BeginStage("execute"), err)
		return e.failed(result, err)
	}

	stage = m.BeginStage("execute")
	execCtx, cancel := stageCtx(ctx, e.cfg.ExecuteTimeout)
	channelResult, err := ex.Execute(execCtx, analysis, p)
	cancel()
	m.EndStage(stage, err)
	if err != nil {
		result.Result = channelResult
		return e.failed(result, err)
	}

	result.Result = channelResult
	result.Success = channelResult != nil && channelResult.Success
	if !result.Success && channelResult != nil {
		result.Error = channelResult.Error
	}
	e.logger.Info("report handled",
		zap.String("report_id", report.ID),
		zap.Bool("success", result.Success))
	return result
}

func (e *Engine) failed(result *ExecutionResult, err error) *ExecutionResult {
	e.logger.Error("pipeline stage failed",
		zap.String("report_id", result.ReportID), zap.Error(err))
	result.Success = false
	result.Error = err.Error()
	return result
}
