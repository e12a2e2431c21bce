package formatter

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/harunnryd/metsuke/internal/audit"
)

type TableFormatter struct {
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	borderStyle lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatReport(report *audit.Report) (string, error) {
	if report == nil {
		return "No report available", nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	t.Row("Integrity Score", fmt.Sprintf("%.1f", report.IntegrityScore))
	t.Row("Recorded Interactions", fmt.Sprintf("%d", report.RecordedInteractions))
	t.Row("Total API Calls", fmt.Sprintf("%d", report.TotalAPICalls))
	t.Row("Missing Interactions", fmt.Sprintf("%d", len(report.MissingInteractions)))
	t.Row("Orphaned API Calls", fmt.Sprintf("%d", len(report.OrphanedAPICalls)))

	if report.CallStatistics != nil {
		t.Row("Successful Calls", fmt.Sprintf("%d", report.CallStatistics.Successful))
		t.Row("Failed Calls", fmt.Sprintf("%d", report.CallStatistics.Failed))
		t.Row("Avg Response (ms)", fmt.Sprintf("%.1f", report.CallStatistics.AverageDurationMS))
	}
	if len(report.DuplicateIDs) > 0 {
		t.Row("Duplicate IDs", truncateString(strings.Join(report.DuplicateIDs, ", "), 60))
	}
	if report.OutOfOrderTimestamps > 0 {
		t.Row("Out-of-order Timestamps", fmt.Sprintf("%d", report.OutOfOrderTimestamps))
	}
	if len(report.TemporalGaps) > 0 {
		t.Row("Temporal Gaps", fmt.Sprintf("%d", len(report.TemporalGaps)))
	}

	out := t.String()
	if len(report.Recommendations) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\nRecommendations:\n")
		for _, rec := range report.Recommendations {
			b.WriteString("  - ")
			b.WriteString(rec)
			b.WriteString("\n")
		}
		out = strings.TrimRight(b.String(), "\n")
	}
	return out, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
