package metrics

import "time"

// StageMetrics times one pipeline stage (classify, plan, execute).
type StageMetrics struct {
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Err        string    `json:"err,omitempty"`
}

// ResolutionMetrics covers one report end to end.
type ResolutionMetrics struct {
	ReportID   string         `json:"report_id"`
	Channel    string         `json:"channel,omitempty"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs int64          `json:"duration_ms"`
	Succeeded  bool           `json:"succeeded"`
	Stages     []StageMetrics `json:"stages"`
}

func NewResolution(reportID string) *ResolutionMetrics {
	return &ResolutionMetrics{ReportID: reportID, Start: time.Now()}
}

// BeginStage opens a stage; the caller closes it with EndStage.
func (m *ResolutionMetrics) BeginStage(name string) int {
	m.Stages = append(m.Stages, StageMetrics{Name: name, Start: time.Now()})
	return len(m.Stages) - 1
}

func (m *ResolutionMetrics) EndStage(idx int, err error) {
	if idx < 0 || idx >= len(m.Stages) {
		return
	}
	s := &m.Stages[idx]
	s.End = time.Now()
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
	s.Success = err == nil
	if err != nil {
		s.Err = err.Error()
	}
}

func (m *ResolutionMetrics) Finalize(succeeded bool) {
	m.End = time.Now()
	m.DurationMs = m.End.Sub(m.Start).Milliseconds()
	m.Succeeded = succeeded
}
