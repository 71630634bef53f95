package utils

import "strings"

// Remediation steps that touch these operations get an operator confirmation
// before execution.
var riskyKeywords = []string{
	"shutdown",
	"power off",
	"delete",
	"purge",
	"override interlock",
	"bypass safety",
	"stop production",
	"halt line",
	"factory reset",
}

func IsStepRisky(step string) bool {
	lower := strings.ToLower(step)
	for _, kw := range riskyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func HasRiskySteps(steps []string) bool {
	for _, step := range steps {
		if IsStepRisky(step) {
			return true
		}
	}
	return false
}
