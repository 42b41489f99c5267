package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensor/forensor/internal/adapters/outbound/config"
	"github.com/forensor/forensor/internal/adapters/outbound/memory"
	"github.com/forensor/forensor/internal/application"
	"github.com/forensor/forensor/internal/domain"
)

// scriptedInterpreter returns canned responses in order, repeating the last
// one, and records the guidance each call received.
type scriptedInterpreter struct {
	mu        sync.Mutex
	calls     int
	guidance  []*domain.IterationGuidance
	responses []interpretResponse
}

type interpretResponse struct {
	analysis *domain.InterpretedAnalysis
	err      error
}

func (s *scriptedInterpreter) Interpret(_ context.Context, _ *domain.ScanBundle, guidance *domain.IterationGuidance) (*domain.InterpretedAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guidance = append(s.guidance, guidance)
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	return r.analysis, r.err
}

// sleepyInterpreter blocks until the per-attempt deadline kills it.
type sleepyInterpreter struct{}

func (sleepyInterpreter) Interpret(ctx context.Context, _ *domain.ScanBundle, _ *domain.IterationGuidance) (*domain.InterpretedAnalysis, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newAuditService(root string, interp domain.Interpreter) (*application.AuditService, *memory.FileStore) {
	store := memory.New(root)
	svc := application.NewAuditService(config.New(), newScanService(), interp, store)
	return svc, store
}

// passingAnalysis addresses every planted finding and grounds both
// recommendations, so all four checks pass.
func passingAnalysis() *domain.InterpretedAnalysis {
	return &domain.InterpretedAnalysis{
		Summary: "Concentrated injection risk in the data layer, debt markers at the entrypoint.",
		Claims: []domain.Claim{
			{Text: "String-built SQL reaches the users table", Protocol: domain.ProtocolExposure,
				Category: "SQL_INJECTION", Severity: 9, Files: []string{"db.py"}},
			{Text: "A hardcoded credential sits in the entry module", Protocol: domain.ProtocolExposure,
				Category: "GENERIC_PASSWORD", Severity: 8, Files: []string{"app.py"}},
			{Text: "The dispatch routine is heavily branched", Protocol: domain.ProtocolCost,
				Category: "HIGH_COMPLEXITY", Severity: 5, Files: []string{"worker.py"}},
			{Text: "Confession markers cluster at the top of the entry module",
				Protocol: domain.ProtocolGuilt, Files: []string{"app.py"}},
		},
		Recommendations: []domain.Recommendation{
			{Text: "Parameterize the user lookup query", Files: []string{"db.py"}},
			{Text: "Move the credential into environment configuration", Files: []string{"app.py"}},
		},
	}
}

// shallowAnalysis fails depth and actionability: no files cited, no
// recommendations at all.
func shallowAnalysis() *domain.InterpretedAnalysis {
	return &domain.InterpretedAnalysis{
		Summary: "The tree has some issues.",
		Claims:  []domain.Claim{{Text: "Things look risky in general"}},
	}
}

func TestAuditService_PassesFirstIteration(t *testing.T) {
	root := plantedTree(t)
	analysis := passingAnalysis()
	interp := &scriptedInterpreter{responses: []interpretResponse{{analysis: analysis}}}
	svc, store := newAuditService(root, interp)

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GatePassed, result.State)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, domain.VerdictPass, result.Outcome.Verdict)
	assert.Equal(t, 1, result.Outcome.Iteration)
	assert.Same(t, analysis, result.Outcome.Accepted)
	assert.Equal(t, 1, interp.calls)

	learning, err := store.Learning()
	require.NoError(t, err)
	assert.Equal(t, 1, learning.TotalRuns)
	assert.Equal(t, 1, learning.PassedRuns)

	recs, err := store.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, result.Bundle.ID, recs[0].ID)
	assert.Equal(t, result.Bundle.Fingerprint, recs[0].Fingerprint)
	assert.Equal(t, domain.VerdictPass, recs[0].Verdict)
	assert.Equal(t, domain.SizeTiny, recs[0].SizeCategory)
	assert.Equal(t, "SQL_INJECTION", recs[0].TopCategory)
	assert.Contains(t, recs[0].Scores, domain.ProtocolExposure)
}

func TestAuditService_HardFailFeedsGuidanceIntoRetry(t *testing.T) {
	root := plantedTree(t)
	interp := &scriptedInterpreter{responses: []interpretResponse{
		{analysis: shallowAnalysis()},
		{analysis: passingAnalysis()},
	}}
	svc, _ := newAuditService(root, interp)

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GatePassed, result.State)
	assert.Equal(t, 2, result.Outcome.Iteration)
	require.Equal(t, 2, interp.calls)

	assert.Nil(t, interp.guidance[0])
	second := interp.guidance[1]
	require.NotNil(t, second)
	assert.Contains(t, second.FailedChecks, domain.CheckDepth)
	assert.Contains(t, second.FailedChecks, domain.CheckActionability)
}

func TestAuditService_BudgetExhaustedSoftFails(t *testing.T) {
	root := plantedTree(t)
	interp := &scriptedInterpreter{responses: []interpretResponse{{analysis: shallowAnalysis()}}}
	svc, store := newAuditService(root, interp)

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GateSoftFailed, result.State)
	assert.Equal(t, domain.VerdictSoftFail, result.Outcome.Verdict)
	assert.Equal(t, 3, interp.calls)
	assert.NotNil(t, result.Outcome.Accepted)
	require.NotEmpty(t, result.Outcome.Notes)
	assert.Contains(t, result.Outcome.Notes[0], "iteration budget exhausted")

	learning, err := store.Learning()
	require.NoError(t, err)
	assert.Equal(t, 1, learning.TotalRuns)
	assert.Equal(t, 0, learning.PassedRuns)
}

func TestAuditService_TimeoutForcesSoftFail(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"a.py":           "# TODO: later\n",
		".forensor.yaml": "interpret_timeout_seconds: 1\n",
	})
	svc, _ := newAuditService(root, sleepyInterpreter{})

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GateSoftFailed, result.State)
	assert.Equal(t, domain.VerdictSoftFail, result.Outcome.Verdict)
	assert.Nil(t, result.Outcome.Accepted)
	require.NotEmpty(t, result.Outcome.Notes)
	assert.Contains(t, result.Outcome.Notes[0], "deadline")
}

func TestAuditService_ErrorWithNoCandidateHardFails(t *testing.T) {
	root := plantedTree(t)
	interp := &scriptedInterpreter{responses: []interpretResponse{
		{err: errors.New("api: connection refused")},
	}}
	svc, store := newAuditService(root, interp)

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GateHardFailed, result.State)
	assert.Equal(t, domain.VerdictHardFail, result.Outcome.Verdict)
	assert.Nil(t, result.Outcome.Accepted)
	assert.Equal(t, 1, interp.calls)

	recs, err := store.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.VerdictHardFail, recs[0].Verdict)
}

func TestAuditService_ErrorAfterCandidateAcceptsBest(t *testing.T) {
	root := plantedTree(t)
	candidate := shallowAnalysis()
	interp := &scriptedInterpreter{responses: []interpretResponse{
		{analysis: candidate},
		{err: errors.New("api: overloaded")},
	}}
	svc, _ := newAuditService(root, interp)

	result, err := svc.Audit(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, domain.GateSoftFailed, result.State)
	assert.Equal(t, domain.VerdictSoftFail, result.Outcome.Verdict)
	assert.Same(t, candidate, result.Outcome.Accepted)
	assert.Equal(t, 2, interp.calls)
}

func TestAuditService_CancelledContextAborts(t *testing.T) {
	root := plantedTree(t)
	interp := &scriptedInterpreter{responses: []interpretResponse{{analysis: passingAnalysis()}}}
	svc, _ := newAuditService(root, interp)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Audit(ctx, root)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, interp.calls)
}

func TestAuditService_LearningAccumulatesAcrossRuns(t *testing.T) {
	root := plantedTree(t)
	interpPass := &scriptedInterpreter{responses: []interpretResponse{{analysis: passingAnalysis()}}}
	svc, store := newAuditService(root, interpPass)

	_, err := svc.Audit(context.Background(), root)
	require.NoError(t, err)

	interpFail := &scriptedInterpreter{responses: []interpretResponse{
		{err: errors.New("api down")},
	}}
	svc2 := application.NewAuditService(config.New(), newScanService(), interpFail, store)
	_, err = svc2.Audit(context.Background(), root)
	require.NoError(t, err)

	learning, err := store.Learning()
	require.NoError(t, err)
	assert.Equal(t, 2, learning.TotalRuns)
	assert.Equal(t, 1, learning.PassedRuns)

	recs, err := store.Records()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
