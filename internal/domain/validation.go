package domain

// GateState is the validation gate's lifecycle state. PASSED, SOFT_FAILED and
// HARD_FAILED are terminal; the gate returns to AWAITING_VALIDATION between
// failed iterations.
type GateState string

const (
	GateAwaiting   GateState = "AWAITING_VALIDATION"
	GatePassed     GateState = "PASSED"
	GateSoftFailed GateState = "SOFT_FAILED"
	GateHardFailed GateState = "HARD_FAILED"
)

// Terminal reports whether the gate has reached a final state.
func (s GateState) Terminal() bool {
	return s == GatePassed || s == GateSoftFailed || s == GateHardFailed
}

// Verdict is the outcome of a single validation round.
type Verdict string

const (
	// VerdictPass means the analysis score met the adaptive threshold.
	VerdictPass Verdict = "PASS"
	// VerdictSoftFail means the analysis was accepted despite a failing
	// score: iteration budget exhausted or interpreter timed out.
	VerdictSoftFail Verdict = "SOFT_FAIL"
	// VerdictHardFail means the analysis was rejected and another
	// interpretation round follows.
	VerdictHardFail Verdict = "HARD_FAIL"
)

// Check names used by the gate.
const (
	CheckCompleteness  = "completeness"
	CheckDepth         = "depth"
	CheckActionability = "actionability"
	CheckConsistency   = "consistency"
)

// CheckResult is one validation criterion's outcome.
type CheckResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// IterationGuidance tells the interpreter what to improve on the next round.
type IterationGuidance struct {
	FailedChecks []string `json:"failed_checks"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
	Adjustments  []string `json:"adjustments,omitempty"`
}

// ValidationOutcome is the gate's full verdict for one iteration.
type ValidationOutcome struct {
	Iteration int                  `json:"iteration"`
	Score     float64              `json:"score"`
	Threshold float64              `json:"threshold"`
	Verdict   Verdict              `json:"verdict"`
	Checks    []CheckResult        `json:"checks"`
	Unmet     []CheckResult        `json:"unmet,omitempty"`
	Guidance  *IterationGuidance   `json:"guidance,omitempty"`
	Accepted  *InterpretedAnalysis `json:"accepted,omitempty"`
	Notes     []string             `json:"notes,omitempty"`
}

// AuditResult bundles everything one audit produced.
type AuditResult struct {
	Bundle  *ScanBundle        `json:"bundle"`
	Outcome *ValidationOutcome `json:"outcome"`
	State   GateState          `json:"state"`
}
