package protocols

import (
	"fmt"
	"math"
	"strings"

	"github.com/forensor/forensor/internal/domain"
)

const (
	sevSQLInjection = 9
	sevUnprotected  = 5
)

// MaskSecret hides the interior of a matched secret, keeping only the first
// and last four characters. Values of eight characters or fewer are fully
// masked. The result depends on the raw value alone, so identical secrets
// always mask identically.
func MaskSecret(raw string) string {
	if len(raw) <= 8 {
		return "****"
	}
	return raw[:4] + strings.Repeat("*", len(raw)-8) + raw[len(raw)-4:]
}

// ScanExposure detects hardcoded secrets, string-built SQL, and routes with
// no auth marker in reach. Secret values are masked before the Finding is
// built; the raw match never leaves this function.
func ScanExposure(corpus *domain.Corpus, cfg domain.AuditConfig) *domain.ProtocolReport {
	report := domain.NewReport(domain.ProtocolExposure)

	secretWeight := 0.0
	secretCount := 0
	sqlCount := 0
	endpointCount := 0

	for _, f := range corpus.Files {
		lines := splitLines(f.Content)

		for i, line := range lines {
			// Secrets. Commented-out examples are not leaks.
			if !isCommentLine(line) {
				for _, sp := range secretPatterns {
					if m := sp.Re.FindString(line); m != "" {
						secretCount++
						secretWeight += float64(sp.Severity) * 0.5
						report.Findings = append(report.Findings, domain.Finding{
							Protocol: domain.ProtocolExposure,
							Category: sp.Name,
							Severity: sp.Severity,
							File:     f.Path,
							Line:     i + 1,
							Evidence: truncate(MaskSecret(m), cfg.EvidenceMax),
						})
					}
				}
			}

			for _, sq := range sqlInjectionPatterns {
				if sq.Re.MatchString(line) {
					sqlCount++
					report.Findings = append(report.Findings, domain.Finding{
						Protocol: domain.ProtocolExposure,
						Category: "SQL_INJECTION",
						Severity: sevSQLInjection,
						File:     f.Path,
						Line:     i + 1,
						Evidence: truncate(sq.Description+": "+line, cfg.EvidenceMax),
					})
				}
			}
		}

		endpointCount += scanEndpoints(f, lines, cfg, report)
	}

	score := secretWeight + float64(sqlCount)*2 + float64(endpointCount)*0.5
	report.Score = round1(math.Min(10, score))

	report.Metrics = map[string]any{
		"secret_leaks":          secretCount,
		"sql_injections":        sqlCount,
		"unprotected_endpoints": endpointCount,
	}

	domain.SortFindings(report.Findings)
	return report
}

// scanEndpoints applies the framework route tables to one file and appends
// UNPROTECTED_ENDPOINT findings for routes lacking an auth marker within the
// table's lexical window.
func scanEndpoints(f domain.SourceFile, lines []string, cfg domain.AuditConfig, report *domain.ProtocolReport) int {
	table, ok := routeTableFor(f)
	if !ok {
		return 0
	}

	count := 0
	for i, line := range lines {
		m := table.Route.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		start := i - table.Before
		if start < 0 {
			start = 0
		}
		end := i + table.After
		if end >= len(lines) {
			end = len(lines) - 1
		}
		window := strings.Join(lines[start:end+1], "\n")

		protected := false
		for _, marker := range table.AuthMarkers {
			if strings.Contains(window, marker) {
				protected = true
				break
			}
		}
		if protected {
			continue
		}

		endpoint := m[table.PathGroup]
		method := "GET"
		if table.MethodGroup > 0 {
			method = strings.ToUpper(m[table.MethodGroup])
		} else {
			lower := strings.ToLower(line)
			switch {
			case strings.Contains(lower, "post"):
				method = "POST"
			case strings.Contains(lower, "put"):
				method = "PUT"
			case strings.Contains(lower, "delete"):
				method = "DELETE"
			}
		}

		count++
		report.Findings = append(report.Findings, domain.Finding{
			Protocol: domain.ProtocolExposure,
			Category: "UNPROTECTED_ENDPOINT",
			Severity: sevUnprotected,
			File:     f.Path,
			Line:     i + 1,
			Evidence: truncate(fmt.Sprintf("%s %s (%s, no auth marker in reach)", method, endpoint, table.Framework), cfg.EvidenceMax),
		})
	}
	return count
}

// routeTableFor picks the framework table matching the file's imports, or
// reports that the file declares no known web framework.
func routeTableFor(f domain.SourceFile) (routeTable, bool) {
	lower := strings.ToLower(string(f.Content))
	switch f.Language {
	case "python":
		switch {
		case strings.Contains(lower, "flask"):
			return flaskRoutes, true
		case strings.Contains(lower, "fastapi"):
			return fastapiRoutes, true
		case strings.Contains(lower, "django"):
			return djangoRoutes, true
		}
	case "javascript", "typescript":
		if strings.Contains(lower, "express") || strings.Contains(lower, "router") {
			return expressRoutes, true
		}
	}
	return routeTable{}, false
}
