package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/forensor/forensor/internal/domain"
)

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle          = lipgloss.NewStyle().Foreground(dim).Italic(true)
)

// RenderOutcome renders the validation gate's verdict for one audit.
func RenderOutcome(result *domain.AuditResult) string {
	var b strings.Builder
	out := result.Outcome

	scoreStyled := lipgloss.NewStyle().
		Bold(true).
		Foreground(verdictColor(out.Verdict)).
		Render(fmt.Sprintf("%.2f", out.Score))
	thresholdLine := dimStyle.Render(fmt.Sprintf("threshold %.2f", out.Threshold))
	iterLine := dimStyle.Render(fmt.Sprintf("iteration %d", out.Iteration))

	header := headerStyle.Render("forensor") + "\n" +
		dimStyle.Render("Validation Gate") + "\n\n" +
		stateStyled(result.State) + "\n" +
		scoreStyled + "  " + thresholdLine + "  " + iterLine
	b.WriteString(boxStyle.Render(header))
	b.WriteString("\n\n")

	for _, check := range out.Checks {
		icon := passStyle.Render("●")
		if !check.Passed {
			icon = failStyle.Render("●")
		}
		line := fmt.Sprintf("    %s %s %s",
			icon,
			padRight(check.Name, 16),
			dimStyle.Render(fmt.Sprintf("weight %.2f", check.Weight)),
		)
		if check.Detail != "" {
			line += "  " + faintStyle.Render(check.Detail)
		}
		b.WriteString(line + "\n")
	}

	if out.Guidance != nil {
		b.WriteString("\n")
		b.WriteString("  " + sectionHeaderStyle.Render("Next Iteration") + "\n")
		for _, area := range out.Guidance.FocusAreas {
			fmt.Fprintf(&b, "    %s %s\n", warnStyle.Render("●"), area)
		}
		for _, adj := range out.Guidance.Adjustments {
			fmt.Fprintf(&b, "      %s\n", faintStyle.Render(adj))
		}
	}

	if out.Accepted != nil {
		renderAnalysis(&b, out.Accepted)
	}

	for _, note := range out.Notes {
		fmt.Fprintf(&b, "\n  %s\n", hintStyle.Render(note))
	}

	return b.String()
}

func renderAnalysis(b *strings.Builder, a *domain.InterpretedAnalysis) {
	b.WriteString("\n")
	b.WriteString("  " + sectionHeaderStyle.Render("Accepted Analysis") + "\n")
	if a.Summary != "" {
		fmt.Fprintf(b, "    %s\n", a.Summary)
	}

	for _, claim := range a.Claims {
		fmt.Fprintf(b, "    %s %s\n", severityTag(claim.Severity), claim.Text)
		if len(claim.Files) > 0 {
			fmt.Fprintf(b, "          %s\n", fileStyle.Render(strings.Join(claim.Files, ", ")))
		}
	}

	if len(a.Recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString("  " + sectionHeaderStyle.Render("Recommendations") + "\n")
		for i, rec := range a.Recommendations {
			fmt.Fprintf(b, "    %s %s\n", dimStyle.Render(fmt.Sprintf("%d.", i+1)), rec.Text)
		}
	}
}

func stateStyled(state domain.GateState) string {
	style := dimStyle
	switch state {
	case domain.GatePassed:
		style = passStyle
	case domain.GateSoftFailed:
		style = warnStyle
	case domain.GateHardFailed:
		style = failStyle
	}
	return style.Bold(true).Render(string(state))
}

func verdictColor(v domain.Verdict) lipgloss.Color {
	switch v {
	case domain.VerdictPass:
		return success
	case domain.VerdictSoftFail:
		return warning
	default:
		return danger
	}
}
