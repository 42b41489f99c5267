package protocols

import (
	"fmt"
	"math"
	"sort"

	"github.com/forensor/forensor/internal/domain"
)

const sevGodClass = 4

// ScanGuilt finds confession markers and god classes. Every tier is tested
// per line independently, so one line can carry a TODO and a HACK at once;
// within a tier only the first matching pattern counts.
func ScanGuilt(corpus *domain.Corpus, cfg domain.AuditConfig) *domain.ProtocolReport {
	report := domain.NewReport(domain.ProtocolGuilt)

	totalLines := 0
	weightedMarkers := 0
	tierCounts := make(map[string]int, len(guiltTiers))

	for _, f := range corpus.Files {
		totalLines += f.Lines

		lines := splitLines(f.Content)
		for i, line := range lines {
			for _, tier := range guiltTiers {
				for _, re := range tier.Patterns {
					if re.MatchString(line) {
						tierCounts[tier.Name]++
						weightedMarkers += tier.Severity
						report.Findings = append(report.Findings, domain.Finding{
							Protocol: domain.ProtocolGuilt,
							Category: tier.Name,
							Severity: tier.Severity,
							File:     f.Path,
							Line:     i + 1,
							Evidence: truncate(line, cfg.EvidenceMax),
						})
						break
					}
				}
			}
		}

		if f.Lines > cfg.GodClassLines {
			report.Findings = append(report.Findings, domain.Finding{
				Protocol: domain.ProtocolGuilt,
				Category: "GOD_CLASS",
				Severity: sevGodClass,
				File:     f.Path,
				Line:     1,
				Evidence: fmt.Sprintf("%d lines", f.Lines),
			})
		}
	}

	// Guilt index: severity-weighted marker density, scaled and capped.
	// God classes surface as findings but do not move the density.
	if totalLines > 0 {
		index := float64(weightedMarkers) / float64(totalLines) * cfg.GuiltScale
		report.Score = round1(math.Min(100, index))
	}

	godClasses := 0
	for _, fd := range report.Findings {
		if fd.Category == "GOD_CLASS" {
			godClasses++
		}
	}

	report.Metrics = map[string]any{
		"total_lines":  totalLines,
		"markers":      tierCounts,
		"god_classes":  godClasses,
		"total_weight": weightedMarkers,
	}

	domain.SortFindings(report.Findings)
	return report
}

// WorstOffenders ranks findings by severity descending with a deterministic
// (path, line) tiebreak and returns at most n of them.
func WorstOffenders(findings []domain.Finding, n int) []domain.Finding {
	ranked := append([]domain.Finding(nil), findings...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
