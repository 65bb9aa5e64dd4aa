package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"NarrativeScorer/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Report renders a report for the terminal. Category labels come from
// categories; ids without a rubric entry are shown as-is.
func Report(r domain.AnalysisReport, categories []domain.RubricCategory) string {
	labels := make(map[string]string, len(categories))
	for _, c := range categories {
		labels[c.ID] = c.Label
	}
	label := func(id string) string {
		if l, ok := labels[id]; ok && l != "" {
			return l
		}
		return id
	}

	sections := []string{header(r), scoreTable(r, label), authenticity(r.Authenticity)}
	if len(r.Flags) > 0 {
		sections = append(sections, labelStyle.Render("Flags: ")+strings.Join(r.Flags, ", "))
	}
	if len(r.WorkshopItems) > 0 {
		sections = append(sections, workshop(r.WorkshopItems, label))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func header(r domain.AnalysisReport) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Entry %s", r.EntryID)),
		fmt.Sprintf("Overall index %.1f (%s), %d of %d categories scored",
			r.OverallIndex, r.Impression, r.ScoredCount, len(r.Categories)),
		noteStyle.Render("run " + r.RunID),
	}
	if r.Status == domain.RunFailed {
		lines = append(lines, warnStyle.Render("Run failed"))
	}
	if r.DeadlineExceeded {
		lines = append(lines, warnStyle.Render("Deadline exceeded; results are partial"))
	}
	if r.Degraded && len(r.Unavailable) > 0 {
		lines = append(lines, warnStyle.Render("Unavailable: "+strings.Join(r.Unavailable, ", ")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func scoreTable(r domain.AnalysisReport, label func(string) string) string {
	width := 0
	for _, c := range r.Categories {
		width = max(width, lipgloss.Width(label(c.CategoryID)))
	}

	rows := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		name := lipgloss.NewStyle().Width(width + 2).Render(label(c.CategoryID))
		value := "  -"
		if c.HasScore() {
			value = fmt.Sprintf("%4.1f", c.Value())
		}
		row := name + value + "  " + labelStyle.Render(string(c.Status))
		if c.Calibrated && c.RawScore != nil && c.CalibrationShift != 0 {
			row += noteStyle.Render(fmt.Sprintf("  (raw %.1f)", *c.RawScore))
		}
		rows = append(rows, row)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func authenticity(a domain.AuthenticityAnalysis) string {
	if !a.Available() {
		return labelStyle.Render("Authenticity: ") + "unavailable"
	}
	line := labelStyle.Render("Authenticity: ") + fmt.Sprintf("%.1f %s (%s)", *a.Score, a.VoiceType, a.Source)
	var flags []string
	if len(a.RedFlags) > 0 {
		flags = append(flags, warnStyle.Render("red: "+strings.Join(a.RedFlags, ", ")))
	}
	if len(a.GreenFlags) > 0 {
		flags = append(flags, "green: "+strings.Join(a.GreenFlags, ", "))
	}
	if len(flags) == 0 {
		return line
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, "  "+strings.Join(flags, "; "))
}

func workshop(items []domain.WorkshopItem, label func(string) string) string {
	lines := []string{titleStyle.Render("Workshop")}
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s, impact %.3f", it.Rank, it.Severity, label(it.CategoryID), it.Impact))
		if it.Problem.Text != "" {
			lines = append(lines, noteStyle.Render(fmt.Sprintf("   %q", it.Problem.Text)))
		}
		for _, s := range it.Suggestions {
			lines = append(lines, "   - "+s.Text)
		}
		if it.Note != "" {
			lines = append(lines, noteStyle.Render("   "+it.Note))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
