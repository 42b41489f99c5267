package domain

import (
	"context"
	"errors"
)

// ErrNoHistory marks a source tree with no usable version history: not a
// repository, or a repository with no commits. Scanners that need history
// degrade to UNAVAILABLE instead of failing the run.
var ErrNoHistory = errors.New("no git history")

// ConfigLoader reads the audit configuration for a project tree. A missing
// config file yields the documented defaults; an invalid one is an error.
type ConfigLoader interface {
	Load(projectPath string) (AuditConfig, error)
}

// CorpusProvider walks a source tree and returns the deterministic, sorted
// file corpus. Per-file read problems become Notes, never errors. Count is
// the cheap pre-pass that sizes the tree before any content is read; it
// applies the same directory, ignore, and extension rules as Collect.
type CorpusProvider interface {
	Count(root string, cfg AuditConfig) (int, error)
	Collect(root string, cfg AuditConfig, sampleRate float64) (*Corpus, error)
}

// Corpus is the collected input to every protocol scanner.
type Corpus struct {
	Files   []SourceFile `json:"files"`
	Notes   []string     `json:"notes,omitempty"`
	Skipped int          `json:"skipped"`
}

// TotalLines sums line counts across the corpus.
func (c *Corpus) TotalLines() int {
	n := 0
	for _, f := range c.Files {
		n += f.Lines
	}
	return n
}

// HistoryProvider yields per-file commit events from version control.
// A tree without usable history returns ErrNoHistory.
type HistoryProvider interface {
	Log(ctx context.Context, root string, maxCommits int) (*History, error)
}

// Interpreter produces a narrative analysis from a scan bundle. Guidance from
// a failed validation round is passed on retries, nil on the first attempt.
type Interpreter interface {
	Interpret(ctx context.Context, bundle *ScanBundle, guidance *IterationGuidance) (*InterpretedAnalysis, error)
}

// MemoryStore persists the cross-run learning aggregate and scan records.
// UpdateLearning must apply the mutation atomically (read-modify-write).
type MemoryStore interface {
	Learning() (LearningAggregate, error)
	UpdateLearning(apply func(*LearningAggregate)) error
	AppendRecord(rec ScanRecord) error
	Records() ([]ScanRecord, error)
}

// LearningAggregate is the bounded cross-run statistic feeding the gate's
// history term. It is the only value that survives between scans.
type LearningAggregate struct {
	TotalRuns  int `json:"total_runs"`
	PassedRuns int `json:"passed_runs"`
}

// PassRate returns the historical pass ratio, or -1 when no runs exist.
func (l LearningAggregate) PassRate() float64 {
	if l.TotalRuns == 0 {
		return -1
	}
	return float64(l.PassedRuns) / float64(l.TotalRuns)
}

// ScanRecord is the memory payload emitted after every completed audit.
type ScanRecord struct {
	ID           string             `json:"id"`
	Fingerprint  string             `json:"fingerprint"`
	When         string             `json:"when"`
	SizeCategory RepoSizeCategory   `json:"size_category"`
	Scores       map[string]float64 `json:"scores"`
	Verdict      Verdict            `json:"verdict"`
	TopCategory  string             `json:"top_category,omitempty"`
}
