package triage

import "time"

// Channel selects which executor handles a plan.
type Channel string

const (
	ChannelAPI Channel = "api"
	ChannelMCP Channel = "mcp"
	ChannelRPA Channel = "rpa"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelAPI, ChannelMCP, ChannelRPA:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ProblemReport is a free-text incident report from industrial operations
// (MES/SCADA/ERP/OA). Created by the caller, consumed once.
type ProblemReport struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ProblemAnalysis is the structured classification of one report. Produced
// once by the classifier and never mutated afterwards.
type ProblemAnalysis struct {
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory"`
	Severity        Severity `json:"severity"`
	AffectedSystems []string `json:"affected_systems"`
	RequiredActions []string `json:"required_actions"`
	SuggestedMethod Channel  `json:"suggested_method"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
}
