package protocols

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/forensor/forensor/internal/domain"
)

const (
	sevComplexityD = 5
	sevComplexityE = 7
	sevComplexityF = 9
	sevDeepNesting = 6
	sevRecursive   = 8
	sevHeavyImport = 3

	maxUnitRecords = 20
)

var (
	rePyDef     = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	reGoFunc    = regexp.MustCompile(`^func\s*(?:\([^)]*\)\s*)?(\w+)\s*\(`)
	reJSFunc    = regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`)
	reJSArrow   = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`)
	reMethod    = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|synchronized|abstract|async|override)\s+)*(?:[\w<>\[\].]+\s+)?(\w+)\s*\([^)]*\)\s*\{`)
	reDecision  = regexp.MustCompile(`\b(if|for|while|case|catch|when)\b`)
	rePyExtra   = regexp.MustCompile(`\b(elif|except|with|assert|and|or)\b`)
	reBoolOp    = regexp.MustCompile(`&&|\|\|`)
	reLoopStart = regexp.MustCompile(`\b(for|while)\b`)
)

// methodKeywords are line starters the method matcher must never mistake for
// a function name.
var methodKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "new": true, "else": true, "do": true,
	"try": true, "with": true,
}

// GradeFor maps a cyclomatic complexity to its letter grade. The breakpoints
// are exhaustive and non-overlapping: 1-5 A, 6-10 B, 11-20 C, 21-30 D,
// 31-40 E, 41+ F.
func GradeFor(complexity int) string {
	switch {
	case complexity <= 5:
		return "A"
	case complexity <= 10:
		return "B"
	case complexity <= 20:
		return "C"
	case complexity <= 30:
		return "D"
	case complexity <= 40:
		return "E"
	default:
		return "F"
	}
}

// BigOFor tags a unit by its deepest loop nesting. Units calling themselves
// from more than one site are exponential or factorial candidates.
func BigOFor(loopDepth, recursiveSites int) string {
	if recursiveSites > 1 {
		return "O(2^n) or O(n!)"
	}
	switch loopDepth {
	case 0:
		return "O(1)"
	case 1:
		return "O(n)"
	case 2:
		return "O(n^2)"
	case 3:
		return "O(n^3)"
	default:
		return fmt.Sprintf("O(n^%d)", loopDepth)
	}
}

// ScanCost measures per-unit cyclomatic complexity, loop-depth Big-O, heavy
// imports in trivial files, and the maintainability index. Parsing is a
// best-effort structural pass; files it cannot tokenize are skipped with a
// note and never abort the protocol.
func ScanCost(corpus *domain.Corpus, cfg domain.AuditConfig) *domain.ProtocolReport {
	report := domain.NewReport(domain.ProtocolCost)

	heavy := mergedHeavyImports(cfg)

	var units []domain.UnitCost
	totalComplexity := 0
	highCount := 0
	recursiveCount := 0
	heavyCount := 0
	oversized := 0

	for _, f := range corpus.Files {
		lines := splitLines(f.Content)

		if tooDense(lines) {
			report.Notes = append(report.Notes, fmt.Sprintf("%s: cannot tokenize (minified or generated), skipped", f.Path))
			continue
		}
		if f.Lines > cfg.GodClassLines {
			oversized++
		}

		fileComplexity := 0
		for _, span := range extractUnits(f.Language, lines) {
			stats := analyzeUnit(f.Language, lines, span)
			fileComplexity += stats.complexity
			totalComplexity += stats.complexity

			grade := GradeFor(stats.complexity)
			bigO := BigOFor(stats.loopDepth, stats.recursiveSites)

			units = append(units, domain.UnitCost{
				Name:       span.name,
				File:       f.Path,
				StartLine:  span.start + 1,
				EndLine:    span.end + 1,
				Complexity: stats.complexity,
				Grade:      grade,
				BigO:       bigO,
			})

			switch grade {
			case "D", "E", "F":
				highCount++
				sev := sevComplexityD
				if grade == "E" {
					sev = sevComplexityE
				} else if grade == "F" {
					sev = sevComplexityF
				}
				report.Findings = append(report.Findings, domain.Finding{
					Protocol: domain.ProtocolCost,
					Category: "HIGH_COMPLEXITY",
					Severity: sev,
					File:     f.Path,
					Line:     span.start + 1,
					Evidence: fmt.Sprintf("%s: CC=%d grade %s", span.name, stats.complexity, grade),
				})
			}

			if stats.recursiveSites > 1 {
				recursiveCount++
				report.Findings = append(report.Findings, domain.Finding{
					Protocol: domain.ProtocolCost,
					Category: "RECURSIVE_BRANCHING",
					Severity: sevRecursive,
					File:     f.Path,
					Line:     span.start + 1,
					Evidence: fmt.Sprintf("%s: recursive calls at %d sites (%s)", span.name, stats.recursiveSites, bigO),
				})
			} else if stats.loopDepth >= 3 {
				report.Findings = append(report.Findings, domain.Finding{
					Protocol: domain.ProtocolCost,
					Category: "DEEP_NESTING",
					Severity: sevDeepNesting,
					File:     f.Path,
					Line:     span.start + 1,
					Evidence: fmt.Sprintf("%s: loop depth %d (%s)", span.name, stats.loopDepth, bigO),
				})
			}
		}

		// Heavy modules only matter in files too trivial to need them.
		if fileComplexity < cfg.TrivialComplexity {
			for _, hi := range heavyImportsIn(f, lines, heavy) {
				heavyCount++
				report.Findings = append(report.Findings, domain.Finding{
					Protocol: domain.ProtocolCost,
					Category: "HEAVY_IMPORT",
					Severity: sevHeavyImport,
					File:     f.Path,
					Line:     hi.line,
					Evidence: truncate(hi.module+": "+hi.reason, cfg.EvidenceMax),
				})
			}
		}
	}

	avgComplexity := 0.0
	if len(units) > 0 {
		avgComplexity = float64(totalComplexity) / float64(len(units))
	}
	oversizedRatio := 0.0
	if len(corpus.Files) > 0 {
		oversizedRatio = float64(oversized) / float64(len(corpus.Files))
	}

	mi := 100 - 3*avgComplexity - 20*oversizedRatio
	mi = math.Max(0, math.Min(100, mi))

	score := (100-mi)*0.6 + float64(highCount)*4 + float64(recursiveCount)*6 + float64(heavyCount)*2
	report.Score = round1(math.Min(100, score))

	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.Complexity != b.Complexity {
			return a.Complexity > b.Complexity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.StartLine < b.StartLine
	})
	if len(units) > maxUnitRecords {
		units = units[:maxUnitRecords]
	}
	report.Units = units

	report.Metrics = map[string]any{
		"units_analyzed":        len(units),
		"avg_complexity":        round1(avgComplexity),
		"maintainability_index": round1(mi),
		"high_complexity":       highCount,
		"recursive_branching":   recursiveCount,
		"heavy_imports":         heavyCount,
	}

	domain.SortFindings(report.Findings)
	return report
}

type unitSpan struct {
	name       string
	start, end int // 0-based inclusive
}

type unitStats struct {
	complexity     int
	loopDepth      int
	recursiveSites int
}

func tooDense(lines []string) bool {
	for _, line := range lines {
		if len(line) > maxRefLine {
			return true
		}
	}
	return false
}

func extractUnits(lang string, lines []string) []unitSpan {
	switch lang {
	case "python":
		return pythonUnits(lines)
	case "go", "javascript", "typescript", "java", "php":
		return braceUnits(lang, lines)
	default:
		return nil
	}
}

// pythonUnits finds def blocks by indentation: a unit ends before the first
// non-blank line at or below the def's indent.
func pythonUnits(lines []string) []unitSpan {
	var units []unitSpan
	for i := 0; i < len(lines); i++ {
		m := rePyDef.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		defIndent := indentWidth(lines[i])
		end := i
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "" {
				continue
			}
			if indentWidth(lines[j]) <= defIndent {
				break
			}
			end = j
		}
		units = append(units, unitSpan{name: m[2], start: i, end: end})
	}
	return units
}

// braceUnits finds function-like blocks by brace tracking from the first
// opening brace after a recognized signature.
func braceUnits(lang string, lines []string) []unitSpan {
	var units []unitSpan
	for i := 0; i < len(lines); i++ {
		name, ok := braceSignature(lang, lines[i])
		if !ok {
			continue
		}

		depth := 0
		opened := false
		end := i
	scan:
		for j := i; j < len(lines); j++ {
			for _, r := range lines[j] {
				switch r {
				case '{':
					depth++
					opened = true
				case '}':
					depth--
					if opened && depth <= 0 {
						end = j
						break scan
					}
				}
			}
			if opened && depth <= 0 {
				end = j
				break
			}
			// Expression-bodied arrows never open a brace; give
			// multi-line signatures a short grace window.
			if !opened && j-i >= 3 {
				end = i
				break
			}
			end = j
		}
		units = append(units, unitSpan{name: name, start: i, end: end})
	}
	return units
}

func braceSignature(lang, line string) (string, bool) {
	switch lang {
	case "go":
		if m := reGoFunc.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	case "javascript", "typescript":
		if m := reJSFunc.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
		if m := reJSArrow.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
		if m := reMethod.FindStringSubmatch(line); m != nil && !methodKeywords[m[1]] {
			return m[1], true
		}
	case "java", "php":
		if m := reJSFunc.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
		if m := reMethod.FindStringSubmatch(line); m != nil && !methodKeywords[m[1]] {
			return m[1], true
		}
	}
	return "", false
}

// analyzeUnit counts decision points, tracks loop nesting, and counts
// self-call sites inside one unit's span.
func analyzeUnit(lang string, lines []string, span unitSpan) unitStats {
	stats := unitStats{complexity: 1}

	selfCall := regexp.MustCompile(`\b` + regexp.QuoteMeta(span.name) + `\s*\(`)

	// Loop nesting for indentation languages.
	var indentLoops []int
	// Loop nesting for brace languages.
	braceDepth := 0
	var braceLoops []int

	for i := span.start; i <= span.end; i++ {
		line := lines[i]
		if isCommentLine(line) {
			continue
		}

		stats.complexity += len(reDecision.FindAllString(line, -1))
		stats.complexity += len(reBoolOp.FindAllString(line, -1))
		if lang == "python" {
			stats.complexity += len(rePyExtra.FindAllString(line, -1))
		}
		if lang == "javascript" || lang == "typescript" || lang == "java" || lang == "php" {
			stats.complexity += countTernaries(line)
		}

		if i > span.start {
			stats.recursiveSites += len(selfCall.FindAllString(line, -1))
		}

		trimmed := strings.TrimSpace(line)
		if lang == "python" {
			if trimmed == "" {
				continue
			}
			indent := indentWidth(line)
			for len(indentLoops) > 0 && indentLoops[len(indentLoops)-1] >= indent {
				indentLoops = indentLoops[:len(indentLoops)-1]
			}
			if strings.HasPrefix(trimmed, "for ") || strings.HasPrefix(trimmed, "while ") ||
				strings.HasPrefix(trimmed, "async for ") {
				indentLoops = append(indentLoops, indent)
				if len(indentLoops) > stats.loopDepth {
					stats.loopDepth = len(indentLoops)
				}
			}
			continue
		}

		entered := reLoopStart.MatchString(trimmed) && !isStringOnly(trimmed)
		if entered {
			braceLoops = append(braceLoops, braceDepth)
			if len(braceLoops) > stats.loopDepth {
				stats.loopDepth = len(braceLoops)
			}
		}
		for _, r := range line {
			switch r {
			case '{':
				braceDepth++
			case '}':
				braceDepth--
			}
		}
		for len(braceLoops) > 0 && braceDepth <= braceLoops[len(braceLoops)-1] {
			braceLoops = braceLoops[:len(braceLoops)-1]
		}
	}

	return stats
}

func countTernaries(line string) int {
	if !strings.Contains(line, "?") || !strings.Contains(line, ":") {
		return 0
	}
	n := 0
	for i := 0; i < len(line); i++ {
		if line[i] != '?' {
			continue
		}
		if i+1 < len(line) && (line[i+1] == '?' || line[i+1] == '.') {
			i++
			continue
		}
		if strings.Contains(line[i+1:], ":") {
			n++
		}
	}
	return n
}

// isStringOnly guards the loop tracker against lines that mention loop
// keywords only inside string literals.
func isStringOnly(trimmed string) bool {
	return strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "'") || strings.HasPrefix(trimmed, "`")
}

type heavyHit struct {
	module string
	reason string
	line   int
}

func mergedHeavyImports(cfg domain.AuditConfig) map[string]string {
	if len(cfg.HeavyImports) == 0 {
		return heavyImports
	}
	merged := make(map[string]string, len(heavyImports)+len(cfg.HeavyImports))
	for k, v := range heavyImports {
		merged[k] = v
	}
	for k, v := range cfg.HeavyImports {
		merged[k] = v
	}
	return merged
}

func heavyImportsIn(f domain.SourceFile, lines []string, table map[string]string) []heavyHit {
	var hits []heavyHit
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		var module string
		switch f.Language {
		case "python":
			if m := rePyFrom.FindStringSubmatch(trimmed); m != nil {
				module = strings.SplitN(m[1], ".", 2)[0]
			} else if m := rePyImport.FindStringSubmatch(trimmed); m != nil {
				module = strings.SplitN(m[1], ".", 2)[0]
			}
		case "javascript", "typescript":
			if m := reJSFrom.FindStringSubmatch(line); m != nil {
				module = headSegment(m[1])
			} else if m := reJSRequire.FindStringSubmatch(line); m != nil {
				module = headSegment(m[1])
			}
		}
		if module == "" {
			continue
		}
		if reason, ok := table[module]; ok {
			hits = append(hits, heavyHit{module: module, reason: reason, line: i + 1})
		}
	}
	return hits
}

func headSegment(spec string) string {
	if strings.HasPrefix(spec, ".") {
		return ""
	}
	if i := strings.Index(spec, "/"); i > 0 {
		return spec[:i]
	}
	return spec
}
