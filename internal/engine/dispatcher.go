package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opsagent/internal/triage"
)

// Dispatcher serializes report handling: reports queue up and run one at a
// time, and the running one can be cancelled. There is deliberately no
// retry; a failed report is reported failed and the operator decides.
type Dispatcher struct {
	engine  *Engine
	queue   chan *triage.ProblemReport
	Results chan *ExecutionResult
	logger  *zap.Logger

	mu        sync.Mutex
	curReport *triage.ProblemReport
	curCancel context.CancelFunc
}

func NewDispatcher(engine *Engine, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		engine:  engine,
		queue:   make(chan *triage.ProblemReport, 100),
		Results: make(chan *ExecutionResult, 10),
		logger:  logger.With(zap.String("component", "dispatcher")),
	}
}

// Start consumes the queue until it is closed.
func (d *Dispatcher) Start() {
	go func() {
		for report := range d.queue {
			d.run(report)
		}
	}()
}

// Submit enqueues a report and returns its ID.
func (d *Dispatcher) Submit(text string) string {
	report := &triage.ProblemReport{
		ID:          uuid.New().String()[:8],
		Text:        text,
		SubmittedAt: time.Now(),
	}
	d.queue <- report
	d.logger.Info("report queued", zap.String("report_id", report.ID))
	return report.ID
}

// Cancel stops the report with the given ID if it is the one running.
func (d *Dispatcher) Cancel(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.curReport == nil {
		return fmt.Errorf("no report is currently running")
	}
	if id != "" && !strings.EqualFold(d.curReport.ID, id) {
		return fmt.Errorf("report %s is not running (current: %s)", id, d.curReport.ID)
	}
	d.curCancel()
	return nil
}

// CancelCurrent stops whatever is running and returns its ID.
func (d *Dispatcher) CancelCurrent() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.curReport == nil {
		return "", fmt.Errorf("no report is currently running")
	}
	id := d.curReport.ID
	d.curCancel()
	return id, nil
}

func (d *Dispatcher) run(report *triage.ProblemReport) {
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.curReport = report
	d.curCancel = cancel
	d.mu.Unlock()
	defer func() {
		cancel()
		d.mu.Lock()
		if d.curReport != nil && d.curReport.ID == report.ID {
			d.curReport = nil
			d.curCancel = nil
		}
		d.mu.Unlock()
	}()

	d.logger.Info("report started", zap.String("report_id", report.ID))
	result := d.engine.HandleProblem(ctx, report)
	d.logger.Info("report finished",
		zap.String("report_id", report.ID),
		zap.Bool("success", result.Success))
	d.Results <- result
}
