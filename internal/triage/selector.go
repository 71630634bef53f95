package triage

// Select maps an analysis to its execution channel. The classifier's
// suggestion is honored verbatim for every confidence value; whether a
// low-confidence classification should ever be overridden (e.g. forced
// human escalation) is a policy decision left to the integrator.
func Select(a *ProblemAnalysis) Channel {
	return a.SuggestedMethod
}
