package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/forensor/forensor/internal/domain"
	"github.com/forensor/forensor/internal/domain/protocols"
)

// ── Claude-inspired warm palette ──
var (
	accent    = lipgloss.Color("#D97706") // amber
	fg        = lipgloss.Color("#E8E6E3") // warm light gray
	dim       = lipgloss.Color("#6B7280") // muted gray
	faint     = lipgloss.Color("#3F3F46") // very dim
	success   = lipgloss.Color("#22C55E") // green
	danger    = lipgloss.Color("#EF4444") // red
	warning   = lipgloss.Color("#F59E0B") // amber-yellow
	info      = lipgloss.Color("#8B949E") // soft blue-gray
	skipColor = lipgloss.Color("#4B5563") // dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	gradeColors = map[string]lipgloss.Color{
		"A": success,
		"B": lipgloss.Color("#A3E635"), // lime
		"C": warning,
		"D": lipgloss.Color("#FB923C"), // orange
		"E": lipgloss.Color("#F97316"), // deep orange
		"F": danger,
	}

	dimStyle       = lipgloss.NewStyle().Foreground(dim)
	faintStyle     = lipgloss.NewStyle().Foreground(faint)
	passStyle      = lipgloss.NewStyle().Foreground(success)
	failStyle      = lipgloss.NewStyle().Foreground(danger)
	warnStyle      = lipgloss.NewStyle().Foreground(warning)
	skipStyle      = lipgloss.NewStyle().Foreground(skipColor)
	errorTagStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle   = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle   = lipgloss.NewStyle().Foreground(info)
	fileStyle      = lipgloss.NewStyle().Foreground(dim)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(fg)
	protoNameStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine  = faintStyle.Render(strings.Repeat("─", 64))
)

const (
	maxShownFindings = 15
	maxShownUnits    = 5
)

// RenderBundle renders a scan bundle: a header box plus one section per
// protocol with its risk score, findings and notes.
func RenderBundle(bundle *domain.ScanBundle) string {
	var b strings.Builder

	title := headerStyle.Render("forensor")
	subtitle := dimStyle.Render("Protocol Scan")
	meta := dimStyle.Render(fmt.Sprintf("%d files, %d lines, %s repository",
		bundle.FileCount, bundle.TotalLines, bundle.SizeCategory))

	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + meta))
	b.WriteString("\n")

	for _, protocol := range domain.AllProtocols {
		renderProtocol(&b, bundle.Report(protocol))
	}

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n")

	total := bundle.TotalFindings()
	if total == 0 {
		b.WriteString("\n  " + passStyle.Render("No findings.") + "\n")
	} else {
		fmt.Fprintf(&b, "\n  %s\n", titleStyle.Render(fmt.Sprintf("%d findings total", total)))
	}

	return b.String()
}

func renderProtocol(b *strings.Builder, r *domain.ProtocolReport) {
	b.WriteString("\n")
	name := protoNameStyle.Render(padRight(strings.ToUpper(r.Protocol), 10))

	if r.Status == domain.StatusUnavailable {
		fmt.Fprintf(b, "  %s %s\n", name, skipStyle.Render("unavailable"))
		for _, note := range r.Notes {
			fmt.Fprintf(b, "    %s\n", faintStyle.Render(note))
		}
		return
	}

	bar := riskBar(r.Score, 20)
	scoreText := lipgloss.NewStyle().
		Bold(true).
		Foreground(riskColor(r.Score)).
		Render(fmt.Sprintf("%5.1f", r.Score))
	count := dimStyle.Render(fmt.Sprintf("%d findings", len(r.Findings)))
	fmt.Fprintf(b, "  %s %s  %s %s\n", name, bar, scoreText, count)

	for _, f := range protocols.WorstOffenders(r.Findings, maxShownFindings) {
		renderFinding(b, f)
	}
	if len(r.Findings) > maxShownFindings {
		fmt.Fprintf(b, "    %s\n",
			faintStyle.Render(fmt.Sprintf("and %d more findings", len(r.Findings)-maxShownFindings)))
	}

	if r.Protocol == domain.ProtocolCost && len(r.Units) > 0 {
		renderUnits(b, r.Units)
	}

	for _, note := range r.Notes {
		fmt.Fprintf(b, "    %s\n", faintStyle.Render(note))
	}
}

func renderFinding(b *strings.Builder, f domain.Finding) {
	tag := severityTag(f.Severity)
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}

	fmt.Fprintf(b, "    %s %s  %s\n", tag, protoNameStyle.Render(f.Category), fileStyle.Render(loc))
	if f.Evidence != "" {
		fmt.Fprintf(b, "          %s\n", dimStyle.Render(f.Evidence))
	}
}

func renderUnits(b *strings.Builder, units []domain.UnitCost) {
	shown := units
	if len(shown) > maxShownUnits {
		shown = shown[:maxShownUnits]
	}
	for _, u := range shown {
		grade := lipgloss.NewStyle().Bold(true).Foreground(gradeColor(u.Grade)).Render(u.Grade)
		cc := dimStyle.Render(fmt.Sprintf("CC %d", u.Complexity))
		loc := fileStyle.Render(fmt.Sprintf("%s:%d", u.File, u.StartLine))
		fmt.Fprintf(b, "    %s %s %s  %s  %s\n",
			grade, padRight(u.Name, 24), cc, faintStyle.Render(u.BigO), loc)
	}
	if len(units) > maxShownUnits {
		fmt.Fprintf(b, "    %s\n",
			faintStyle.Render(fmt.Sprintf("and %d more units", len(units)-maxShownUnits)))
	}
}

// severityTag maps the 1..9 ordinal scale onto three display buckets.
func severityTag(severity int) string {
	switch {
	case severity >= 7:
		return errorTagStyle.Render("error")
	case severity >= 4:
		return warnTagStyle.Render("warn ")
	default:
		return infoTagStyle.Render("info ")
	}
}

func riskBar(score float64, width int) string {
	filled := max(0, min(int(score)*width/100, width))
	empty := width - filled

	color := riskColor(score)
	filledStr := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

// riskColor: protocol scores measure damage, so high numbers run hot.
func riskColor(score float64) lipgloss.Color {
	switch {
	case score < 20:
		return success
	case score < 40:
		return lipgloss.Color("#A3E635") // lime
	case score < 60:
		return warning
	case score < 80:
		return lipgloss.Color("#FB923C") // orange
	default:
		return danger
	}
}

func gradeColor(grade string) lipgloss.Color {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return fg
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderRecords formats past scan records for terminal output.
func RenderRecords(recs []domain.ScanRecord) string {
	if len(recs) == 0 {
		return "  " + dimStyle.Render("No scan records found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Scan History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for _, rec := range recs {
		fp := rec.Fingerprint
		if len(fp) > 8 {
			fp = fp[:8]
		}
		if fp == "" {
			fp = "········"
		}
		when := rec.When
		if len(when) > 10 {
			when = when[:10]
		}

		line := fmt.Sprintf("  %s  %s  %s  %s",
			dimStyle.Render(when),
			faintStyle.Render(fp),
			verdictStyled(rec.Verdict),
			dimStyle.Render(string(rec.SizeCategory)),
		)
		if rec.TopCategory != "" {
			line += "  " + faintStyle.Render(rec.TopCategory)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func verdictStyled(v domain.Verdict) string {
	switch v {
	case domain.VerdictPass:
		return passStyle.Render(string(v))
	case domain.VerdictSoftFail:
		return warnStyle.Render(string(v))
	default:
		return failStyle.Render(string(v))
	}
}
