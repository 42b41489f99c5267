package protocols

import (
	"fmt"
	"math"
	"time"

	"github.com/forensor/forensor/internal/domain"
)

// Rot severity scale (ordinal 1-10).
const (
	sevSilentDependency = 8
	sevChaoticFile      = 6
	sevAbandonedFile    = 4
)

// Rot score weights. Abandonment dominates, chaos second, each silent
// dependency adds a flat penalty, and the staleness mean keeps all-fresh
// trees near zero.
const (
	rotWeightAbandoned = 40.0
	rotWeightChaotic   = 30.0
	rotWeightSilent    = 5.0
	rotWeightStaleness = 20.0
)

// ScanRot detects abandoned files, chaotic churn, and silent dependencies.
// A nil or empty history makes the protocol UNAVAILABLE: without commit
// data a zero score would be indistinguishable from a healthy tree.
func ScanRot(corpus *domain.Corpus, hist *domain.History, cfg domain.AuditConfig, now time.Time) *domain.ProtocolReport {
	if hist == nil || len(hist.Events) == 0 {
		return domain.Unavailable(domain.ProtocolRot, "no git history available")
	}

	report := domain.NewReport(domain.ProtocolRot)

	staleCutoff := time.Duration(cfg.StaleDays) * 24 * time.Hour
	churnCutoff := now.Add(-time.Duration(cfg.ChurnWindowDays) * 24 * time.Hour)

	abandoned := make(map[string]bool)
	tracked := 0
	untracked := 0
	var stalenessSum float64

	for _, f := range corpus.Files {
		events := hist.Events[f.Path]
		if len(events) == 0 {
			untracked++
			continue
		}
		tracked++

		last := newestEvent(events)
		staleness := now.Sub(last)
		stalenessSum += staleness.Hours() / 24

		if staleness > staleCutoff {
			abandoned[f.Path] = true
			report.Findings = append(report.Findings, domain.Finding{
				Protocol: domain.ProtocolRot,
				Category: "ABANDONED_FILE",
				Severity: sevAbandonedFile,
				File:     f.Path,
				Evidence: fmt.Sprintf("last touched %d days ago", int(staleness.Hours()/24)),
			})
		}

		churn := 0
		for _, ev := range events {
			if ev.When.After(churnCutoff) {
				churn++
			}
		}
		if churn >= cfg.ChurnThreshold {
			report.Findings = append(report.Findings, domain.Finding{
				Protocol: domain.ProtocolRot,
				Category: "CHAOTIC_FILE",
				Severity: sevChaoticFile,
				File:     f.Path,
				Evidence: fmt.Sprintf("%d commits in the last %d days", churn, cfg.ChurnWindowDays),
			})
		}
	}

	graph := BuildReferenceGraph(corpus.Files)
	report.Notes = append(report.Notes, graph.Notes...)

	silent := 0
	for _, f := range corpus.Files {
		if !abandoned[f.Path] {
			continue
		}
		live := 0
		for _, importer := range graph.ImportedBy[f.Path] {
			if !abandoned[importer] {
				live++
			}
		}
		if live > 0 {
			silent++
			report.Findings = append(report.Findings, domain.Finding{
				Protocol: domain.ProtocolRot,
				Category: "SILENT_DEPENDENCY",
				Severity: sevSilentDependency,
				File:     f.Path,
				Evidence: fmt.Sprintf("abandoned but imported by %d live files", live),
			})
		}
	}

	chaotic := 0
	for _, fd := range report.Findings {
		if fd.Category == "CHAOTIC_FILE" {
			chaotic++
		}
	}

	var avgStaleness float64
	if tracked > 0 {
		avgStaleness = stalenessSum / float64(tracked)

		abandonedRatio := float64(len(abandoned)) / float64(tracked)
		chaoticRatio := float64(chaotic) / float64(tracked)
		score := abandonedRatio*rotWeightAbandoned +
			chaoticRatio*rotWeightChaotic +
			float64(silent)*rotWeightSilent +
			avgStaleness/365*rotWeightStaleness
		report.Score = round1(math.Min(100, score))
	}

	if untracked > 0 {
		report.Notes = append(report.Notes,
			fmt.Sprintf("%d files have no commit history and were excluded from staleness metrics", untracked))
	}

	report.Metrics = map[string]any{
		"tracked_files":       tracked,
		"abandoned_files":     len(abandoned),
		"chaotic_files":       chaotic,
		"silent_dependencies": silent,
		"avg_staleness_days":  round1(avgStaleness),
	}

	domain.SortFindings(report.Findings)
	return report
}

func newestEvent(events []domain.CommitEvent) time.Time {
	newest := events[0].When
	for _, ev := range events[1:] {
		if ev.When.After(newest) {
			newest = ev.When
		}
	}
	return newest
}
