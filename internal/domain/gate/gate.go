package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forensor/forensor/internal/domain"
)

const (
	weightCompleteness  = 0.30
	weightDepth         = 0.15
	weightActionability = 0.35
	weightConsistency   = 0.20

	// Each completed attempt relaxes the threshold by this much.
	iterationRelief = 0.05
	// The history term never moves the threshold by more than this.
	historyBound = 0.05

	thresholdFloor = 0.40
	thresholdCeil  = 0.90

	// Two claims about the same file and category contradict each other
	// when their severities differ by at least this much.
	contradictionGap = 3
)

// Gate is the validation state machine for one audit. It never calls the
// interpreter; the audit service feeds it candidate analyses and the gate
// decides PASS, HARD_FAIL (retry), or SOFT_FAIL (accept the best seen).
//
// A Gate is not safe for concurrent use.
type Gate struct {
	cfg       domain.AuditConfig
	size      domain.RepoSizeCategory
	passRate  float64 // historical pass rate, -1 when no history exists
	state     domain.GateState
	completed int
	best      *candidate
	last      *domain.ValidationOutcome
}

type candidate struct {
	analysis  *domain.InterpretedAnalysis
	score     float64
	iteration int
}

// New returns a gate in AWAITING_VALIDATION for a scan of the given size.
// The learning aggregate feeds the adaptive threshold's history term.
func New(cfg domain.AuditConfig, size domain.RepoSizeCategory, learning domain.LearningAggregate) *Gate {
	return &Gate{
		cfg:      cfg,
		size:     size,
		passRate: learning.PassRate(),
		state:    domain.GateAwaiting,
	}
}

// State returns the current lifecycle state.
func (g *Gate) State() domain.GateState { return g.state }

// Iteration returns the 1-based number of the next (or current) attempt.
func (g *Gate) Iteration() int { return g.completed + 1 }

// Exhausted reports whether the iteration budget is spent.
func (g *Gate) Exhausted() bool { return g.completed >= g.cfg.MaxIterations }

// Threshold computes the adaptive acceptance bar for the current attempt.
// Larger repositories, spent iterations, and a historically low pass rate
// all lower the bar; it never leaves [0.40, 0.90].
func (g *Gate) Threshold() float64 {
	t := g.cfg.BaseThreshold
	t -= g.cfg.SizeAdjustment(g.size)
	t -= iterationRelief * float64(g.completed)
	if g.passRate >= 0 {
		h := (0.5 - g.passRate) * 0.1
		h = math.Max(-historyBound, math.Min(historyBound, h))
		t -= h
	}
	t = math.Max(thresholdFloor, math.Min(thresholdCeil, t))
	return round2(t)
}

// Evaluate scores one interpreted analysis against the bundle and advances
// the state machine. Calling it on a terminal gate is a no-op returning the
// final outcome.
func (g *Gate) Evaluate(bundle *domain.ScanBundle, analysis *domain.InterpretedAnalysis) *domain.ValidationOutcome {
	if g.state.Terminal() {
		return g.last
	}

	attempt := g.completed + 1
	threshold := g.Threshold()

	checks := runChecks(bundle, analysis, g.cfg)

	score := 0.0
	var unmet []domain.CheckResult
	for _, c := range checks {
		if c.Passed {
			score += c.Weight
		} else {
			unmet = append(unmet, c)
		}
	}
	score = round2(score)

	if analysis != nil {
		if g.best == nil || score > g.best.score {
			g.best = &candidate{analysis: analysis, score: score, iteration: attempt}
		}
	}

	outcome := &domain.ValidationOutcome{
		Iteration: attempt,
		Score:     score,
		Threshold: threshold,
		Checks:    checks,
		Unmet:     unmet,
	}

	switch {
	case score >= threshold:
		outcome.Verdict = domain.VerdictPass
		outcome.Accepted = analysis
		g.state = domain.GatePassed
	case attempt >= g.cfg.MaxIterations:
		outcome.Verdict = domain.VerdictSoftFail
		if g.best != nil {
			outcome.Accepted = g.best.analysis
			outcome.Notes = append(outcome.Notes, fmt.Sprintf(
				"iteration budget exhausted after %d attempts; accepting best candidate (score %.2f from iteration %d)",
				attempt, g.best.score, g.best.iteration))
		} else {
			outcome.Notes = append(outcome.Notes, "iteration budget exhausted with no candidate")
		}
		g.state = domain.GateSoftFailed
	default:
		outcome.Verdict = domain.VerdictHardFail
		outcome.Guidance = buildGuidance(unmet, g.cfg)
		g.state = domain.GateAwaiting
	}

	g.completed = attempt
	g.last = outcome
	return outcome
}

// ForceSoftFail terminates the gate as SOFT_FAILED without scoring, used when
// the interpreter exceeds its deadline. The best candidate seen so far is
// accepted; with no candidate the outcome carries only the reason.
func (g *Gate) ForceSoftFail(reason string) *domain.ValidationOutcome {
	if g.state.Terminal() {
		return g.last
	}
	outcome := &domain.ValidationOutcome{
		Iteration: g.completed + 1,
		Threshold: g.Threshold(),
		Verdict:   domain.VerdictSoftFail,
		Notes:     []string{reason},
	}
	if g.best != nil {
		outcome.Score = g.best.score
		outcome.Accepted = g.best.analysis
	}
	g.state = domain.GateSoftFailed
	g.last = outcome
	return outcome
}

// ForceHardFail terminates the gate as HARD_FAILED, used when the interpreter
// errors unrecoverably before producing any candidate.
func (g *Gate) ForceHardFail(reason string) *domain.ValidationOutcome {
	if g.state.Terminal() {
		return g.last
	}
	outcome := &domain.ValidationOutcome{
		Iteration: g.completed + 1,
		Threshold: g.Threshold(),
		Verdict:   domain.VerdictHardFail,
		Notes:     []string{reason},
	}
	g.state = domain.GateHardFailed
	g.last = outcome
	return outcome
}

// runChecks executes the four criteria concurrently. They share no state, so
// each writes its own slot.
func runChecks(bundle *domain.ScanBundle, analysis *domain.InterpretedAnalysis, cfg domain.AuditConfig) []domain.CheckResult {
	results := make([]domain.CheckResult, 4)
	var eg errgroup.Group
	eg.Go(func() error { results[0] = checkCompleteness(bundle); return nil })
	eg.Go(func() error { results[1] = checkDepth(bundle, analysis, cfg); return nil })
	eg.Go(func() error { results[2] = checkActionability(bundle, analysis); return nil })
	eg.Go(func() error { results[3] = checkConsistency(analysis); return nil })
	_ = eg.Wait()
	return results
}

// checkCompleteness passes when at most one protocol report is empty or
// UNAVAILABLE. It judges scan coverage, not the analysis text, so a failure
// here persists across iterations and only threshold relief can absorb it.
func checkCompleteness(bundle *domain.ScanBundle) domain.CheckResult {
	res := domain.CheckResult{Name: domain.CheckCompleteness, Weight: weightCompleteness}
	var thin []string
	for _, p := range domain.AllProtocols {
		r := bundle.Report(p)
		if r.Status == domain.StatusUnavailable || len(r.Findings) == 0 {
			thin = append(thin, p)
		}
	}
	if len(thin) <= 1 {
		res.Passed = true
		res.Detail = "protocol coverage sufficient"
	} else {
		res.Detail = fmt.Sprintf("%d protocols empty or unavailable: %s", len(thin), strings.Join(thin, ", "))
	}
	return res
}

// checkDepth passes when the analysis addresses enough distinct findings and
// carries enough recommendations. It never demands more findings than the
// scan actually produced.
func checkDepth(bundle *domain.ScanBundle, analysis *domain.InterpretedAnalysis, cfg domain.AuditConfig) domain.CheckResult {
	res := domain.CheckResult{Name: domain.CheckDepth, Weight: weightDepth}
	if analysis == nil {
		res.Detail = "no analysis"
		return res
	}

	need := min(cfg.MinFindings, bundle.TotalFindings())
	addressed := countAddressedFindings(bundle, analysis)

	if addressed >= need && len(analysis.Recommendations) >= cfg.MinRecommendations {
		res.Passed = true
		res.Detail = fmt.Sprintf("%d findings addressed, %d recommendations", addressed, len(analysis.Recommendations))
		return res
	}
	res.Detail = fmt.Sprintf("addressed %d/%d findings, %d/%d recommendations",
		addressed, need, len(analysis.Recommendations), cfg.MinRecommendations)
	return res
}

// countAddressedFindings counts distinct findings that some claim cites by
// file, with protocol and category matching when the claim specifies them.
func countAddressedFindings(bundle *domain.ScanBundle, analysis *domain.InterpretedAnalysis) int {
	count := 0
	for _, p := range domain.AllProtocols {
		r, ok := bundle.Reports[p]
		if !ok || r == nil {
			continue
		}
		for _, f := range r.Findings {
			if claimAddresses(analysis.Claims, f) {
				count++
			}
		}
	}
	return count
}

func claimAddresses(claims []domain.Claim, f domain.Finding) bool {
	for _, c := range claims {
		if c.Protocol != "" && c.Protocol != f.Protocol {
			continue
		}
		if c.Category != "" && c.Category != f.Category {
			continue
		}
		for _, file := range c.Files {
			if file == f.File {
				return true
			}
		}
	}
	return false
}

// checkActionability passes when at least one recommendation exists and every
// recommendation cites at least one file that appears in the findings.
func checkActionability(bundle *domain.ScanBundle, analysis *domain.InterpretedAnalysis) domain.CheckResult {
	res := domain.CheckResult{Name: domain.CheckActionability, Weight: weightActionability}
	if analysis == nil || len(analysis.Recommendations) == 0 {
		res.Detail = "no recommendations"
		return res
	}

	known := make(map[string]bool)
	for _, r := range bundle.Reports {
		for _, f := range r.Findings {
			known[f.File] = true
		}
	}

	for i, rec := range analysis.Recommendations {
		cited := false
		for _, file := range rec.Files {
			if known[file] {
				cited = true
				break
			}
		}
		if !cited {
			res.Detail = fmt.Sprintf("recommendation %d cites no file from the findings", i+1)
			return res
		}
	}
	res.Passed = true
	res.Detail = fmt.Sprintf("%d recommendations, all grounded in findings", len(analysis.Recommendations))
	return res
}

// checkConsistency passes when no two claims assign severities at least
// contradictionGap apart to the same (file, category) pair.
func checkConsistency(analysis *domain.InterpretedAnalysis) domain.CheckResult {
	res := domain.CheckResult{Name: domain.CheckConsistency, Weight: weightConsistency}
	if analysis == nil {
		res.Detail = "no analysis"
		return res
	}

	type span struct{ lo, hi int }
	seen := make(map[string]span)
	var keys []string
	for _, c := range analysis.Claims {
		if c.Severity <= 0 || c.Category == "" {
			continue
		}
		for _, file := range c.Files {
			key := file + "|" + c.Category
			s, ok := seen[key]
			if !ok {
				seen[key] = span{lo: c.Severity, hi: c.Severity}
				keys = append(keys, key)
				continue
			}
			if c.Severity < s.lo {
				s.lo = c.Severity
			}
			if c.Severity > s.hi {
				s.hi = c.Severity
			}
			seen[key] = s
		}
	}

	sort.Strings(keys)
	for _, key := range keys {
		s := seen[key]
		if s.hi-s.lo >= contradictionGap {
			file, category, _ := strings.Cut(key, "|")
			res.Detail = fmt.Sprintf("contradictory severities %d and %d for %s (%s)", s.lo, s.hi, file, category)
			return res
		}
	}
	res.Passed = true
	res.Detail = "no contradictory claims"
	return res
}

// buildGuidance turns unmet criteria into structured retry instructions.
func buildGuidance(unmet []domain.CheckResult, cfg domain.AuditConfig) *domain.IterationGuidance {
	g := &domain.IterationGuidance{}
	for _, c := range unmet {
		g.FailedChecks = append(g.FailedChecks, c.Name)
		switch c.Name {
		case domain.CheckCompleteness:
			g.FocusAreas = append(g.FocusAreas, "scan coverage is thin; call out the protocols with no signal explicitly")
		case domain.CheckDepth:
			g.FocusAreas = append(g.FocusAreas, fmt.Sprintf(
				"address at least %d distinct findings and give at least %d recommendations",
				cfg.MinFindings, cfg.MinRecommendations))
		case domain.CheckActionability:
			g.FocusAreas = append(g.FocusAreas, "every recommendation must cite at least one file from the findings")
		case domain.CheckConsistency:
			g.FocusAreas = append(g.FocusAreas, "resolve contradictory severities assigned to the same file and category")
		}
		if c.Detail != "" {
			g.Adjustments = append(g.Adjustments, c.Name+": "+c.Detail)
		}
	}
	return g
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
