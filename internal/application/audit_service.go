package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/forensor/forensor/internal/domain"
	"github.com/forensor/forensor/internal/domain/gate"
)

// AuditService runs the full pipeline: scan, interpret, validate, remember.
// The gate owns the iteration state machine; this service owns the loop,
// the per-attempt deadline, and the memory writes at the end.
type AuditService struct {
	configLoader domain.ConfigLoader
	scanService  *ScanService
	interpreter  domain.Interpreter
	memory       domain.MemoryStore
}

func NewAuditService(
	configLoader domain.ConfigLoader,
	scanService *ScanService,
	interpreter domain.Interpreter,
	memory domain.MemoryStore,
) *AuditService {
	return &AuditService{
		configLoader: configLoader,
		scanService:  scanService,
		interpreter:  interpreter,
		memory:       memory,
	}
}

// Audit scans the tree, feeds the bundle to the interpreter, and gates the
// interpretation. The loop runs at most MaxIterations interpretation rounds;
// a deadline or an interpreter error terminates it early through the gate's
// force paths instead of hanging or retrying forever.
func (s *AuditService) Audit(ctx context.Context, root string) (*domain.AuditResult, error) {
	// 1. Load config (the gate needs the thresholds, the loop the deadline)
	cfg, err := s.configLoader.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// 2. Scan
	bundle, err := s.scanService.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	// 3. The learning aggregate feeds the adaptive threshold. Losing it only
	// costs the history term, so a read failure degrades instead of aborting.
	learning, err := s.memory.Learning()
	if err != nil {
		slog.Warn("learning aggregate unavailable", "error", err)
		learning = domain.LearningAggregate{}
	}

	g := gate.New(cfg, bundle.SizeCategory, learning)

	// 4. Interpret/validate loop
	var (
		outcome       *domain.ValidationOutcome
		guidance      *domain.IterationGuidance
		candidateSeen bool
	)
	timeout := time.Duration(cfg.InterpretTimeout) * time.Second

	for !g.State().Terminal() {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		analysis, err := s.interpreter.Interpret(attemptCtx, bundle, guidance)
		cancel()

		switch {
		case err == nil:
			if analysis != nil {
				candidateSeen = true
			}
			outcome = g.Evaluate(bundle, analysis)
			guidance = outcome.Guidance
			slog.Debug("validation round",
				"iteration", outcome.Iteration,
				"score", outcome.Score,
				"threshold", outcome.Threshold,
				"verdict", outcome.Verdict)
		case ctx.Err() != nil:
			// The caller's context died, not our per-attempt deadline.
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			slog.Warn("interpreter deadline exceeded", "iteration", g.Iteration(), "timeout", timeout)
			outcome = g.ForceSoftFail(fmt.Sprintf("interpreter exceeded its %s deadline", timeout))
		case candidateSeen:
			slog.Warn("interpreter failed after producing a candidate", "iteration", g.Iteration(), "error", err)
			outcome = g.ForceSoftFail(fmt.Sprintf("interpreter error on retry: %v; accepting best candidate", err))
		default:
			slog.Error("interpreter failed with no candidate", "iteration", g.Iteration(), "error", err)
			outcome = g.ForceHardFail(fmt.Sprintf("interpreter error: %v", err))
		}
	}

	state := g.State()

	// 5. Remember the run. The verdict is already decided, so persistence
	// problems are logged and swallowed rather than failing the audit.
	passed := state == domain.GatePassed
	if err := s.memory.UpdateLearning(func(l *domain.LearningAggregate) {
		l.TotalRuns++
		if passed {
			l.PassedRuns++
		}
	}); err != nil {
		slog.Warn("updating learning aggregate", "error", err)
	}
	if err := s.memory.AppendRecord(buildRecord(bundle, outcome)); err != nil {
		slog.Warn("appending scan record", "error", err)
	}

	return &domain.AuditResult{Bundle: bundle, Outcome: outcome, State: state}, nil
}

// buildRecord condenses a finished audit into the persisted scan record.
func buildRecord(bundle *domain.ScanBundle, outcome *domain.ValidationOutcome) domain.ScanRecord {
	scores := make(map[string]float64, len(bundle.Reports))
	for p, r := range bundle.Reports {
		scores[p] = r.Score
	}
	return domain.ScanRecord{
		ID:           bundle.ID,
		Fingerprint:  bundle.Fingerprint,
		When:         time.Now().UTC().Format(time.RFC3339),
		SizeCategory: bundle.SizeCategory,
		Scores:       scores,
		Verdict:      outcome.Verdict,
		TopCategory:  topCategory(bundle),
	}
}

// topCategory picks the finding category with the largest severity-weighted
// presence across all reports, ties broken by name.
func topCategory(bundle *domain.ScanBundle) string {
	weight := make(map[string]int)
	for _, r := range bundle.Reports {
		for _, f := range r.Findings {
			weight[f.Category] += f.Severity
		}
	}
	if len(weight) == 0 {
		return ""
	}

	names := make([]string, 0, len(weight))
	for name := range weight {
		names = append(names, name)
	}
	sort.Strings(names)

	top := names[0]
	for _, name := range names[1:] {
		if weight[name] > weight[top] {
			top = name
		}
	}
	return top
}
