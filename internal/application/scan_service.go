package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forensor/forensor/internal/domain"
	"github.com/forensor/forensor/internal/domain/protocols"
)

// ScanService orchestrates the scan pipeline:
// load config → size the tree → collect corpus → load history → run protocols → bundle.
type ScanService struct {
	configLoader domain.ConfigLoader
	corpus       domain.CorpusProvider
	history      domain.HistoryProvider
}

func NewScanService(
	configLoader domain.ConfigLoader,
	corpus domain.CorpusProvider,
	history domain.HistoryProvider,
) *ScanService {
	return &ScanService{
		configLoader: configLoader,
		corpus:       corpus,
		history:      history,
	}
}

// Scan runs every enabled protocol over the tree at root and assembles the
// bundle. Per-file problems surface as notes; configuration and environment
// failures abort the scan.
func (s *ScanService) Scan(ctx context.Context, root string) (*domain.ScanBundle, error) {
	started := time.Now()

	// 1. Load config (fail fast on invalid values)
	cfg, err := s.configLoader.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// 2. Size the tree before reading any content
	treeFiles, err := s.corpus.Count(root, cfg)
	if err != nil {
		return nil, fmt.Errorf("sizing tree: %w", err)
	}
	size := domain.SizeCategoryFor(treeFiles)
	strategy := domain.StrategyFor(size, cfg.EnabledProtocols())
	slog.Debug("scan strategy", "root", root, "files", treeFiles, "size", size, "sample_rate", strategy.SampleRate)

	// 3. Collect the corpus, sampled per strategy
	corpus, err := s.corpus.Collect(root, cfg, strategy.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("collecting corpus: %w", err)
	}

	// 4. Load history; a tree without it degrades rot to UNAVAILABLE
	var hist *domain.History
	if strategy.Enabled(domain.ProtocolRot) {
		hist, err = s.history.Log(ctx, root, cfg.MaxCommits)
		if err != nil {
			if !errors.Is(err, domain.ErrNoHistory) {
				return nil, fmt.Errorf("reading history: %w", err)
			}
			slog.Debug("no usable git history", "root", root)
			hist = nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Run the enabled protocols in parallel. The scanners share no mutable
	// state and each goroutine writes only its own report variable.
	var rotRep, guiltRep, exposureRep, costRep *domain.ProtocolReport
	now := time.Now()
	var eg errgroup.Group
	if strategy.Enabled(domain.ProtocolRot) {
		eg.Go(func() error { rotRep = protocols.ScanRot(corpus, hist, cfg, now); return nil })
	}
	if strategy.Enabled(domain.ProtocolGuilt) {
		eg.Go(func() error { guiltRep = protocols.ScanGuilt(corpus, cfg); return nil })
	}
	if strategy.Enabled(domain.ProtocolExposure) {
		eg.Go(func() error { exposureRep = protocols.ScanExposure(corpus, cfg); return nil })
	}
	if strategy.Enabled(domain.ProtocolCost) {
		eg.Go(func() error { costRep = protocols.ScanCost(corpus, cfg); return nil })
	}
	_ = eg.Wait()

	// 6. Assemble the bundle
	reports := make(map[string]*domain.ProtocolReport, len(strategy.Protocols))
	for p, r := range map[string]*domain.ProtocolReport{
		domain.ProtocolRot:      rotRep,
		domain.ProtocolGuilt:    guiltRep,
		domain.ProtocolExposure: exposureRep,
		domain.ProtocolCost:     costRep,
	} {
		if r != nil {
			reports[p] = r
		}
	}
	// Protocols the strategy dropped still get an explicit placeholder so
	// downstream consumers see "no signal" instead of a missing key.
	for _, p := range cfg.EnabledProtocols() {
		if !strategy.Enabled(p) {
			reports[p] = domain.Unavailable(p, "protocol skipped at this repository size")
		}
	}

	bundle := &domain.ScanBundle{
		ID:           uuid.NewString(),
		Root:         root,
		Fingerprint:  fingerprint(corpus.Files),
		SizeCategory: size,
		FileCount:    len(corpus.Files),
		TotalLines:   corpus.TotalLines(),
		Reports:      reports,
		Notes:        append(append([]string(nil), strategy.Notes...), corpus.Notes...),
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}

	slog.Debug("scan complete",
		"root", root,
		"files", bundle.FileCount,
		"findings", bundle.TotalFindings(),
		"duration", bundle.FinishedAt.Sub(bundle.StartedAt))
	return bundle, nil
}

// fingerprint hashes the sorted corpus path list. Content never enters the
// hash, so touching a file does not change a tree's identity.
func fingerprint(files []domain.SourceFile) string {
	d := xxhash.New()
	for _, f := range files {
		_, _ = d.WriteString(f.Path)
		_, _ = d.WriteString("\n")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
