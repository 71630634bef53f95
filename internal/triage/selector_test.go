package triage

import "testing"

// The selector is a total deterministic mapping: the suggested method is
// honored verbatim regardless of confidence.
func TestSelect(t *testing.T) {
	testCases := []struct {
		name       string
		analysis   *ProblemAnalysis
		wantChannel Channel
	}{
		{
			name:        "API suggestion",
			analysis:    &ProblemAnalysis{SuggestedMethod: ChannelAPI, Confidence: 0.85},
			wantChannel: ChannelAPI,
		},
		{
			name:        "MCP suggestion",
			analysis:    &ProblemAnalysis{SuggestedMethod: ChannelMCP, Confidence: 0.6},
			wantChannel: ChannelMCP,
		},
		{
			name:        "RPA suggestion",
			analysis:    &ProblemAnalysis{SuggestedMethod: ChannelRPA, Confidence: 0.99},
			wantChannel: ChannelRPA,
		},
		{
			name:        "Low confidence does not override the suggestion",
			analysis:    &ProblemAnalysis{SuggestedMethod: ChannelRPA, Confidence: 0.01},
			wantChannel: ChannelRPA,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(tc.analysis); got != tc.wantChannel {
				t.Errorf("Select() = %q, want %q", got, tc.wantChannel)
			}
		})
	}
}
