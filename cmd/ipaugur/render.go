package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalnine/ipaugur/internal/protocol"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	ipStyle     = lipgloss.NewStyle().Bold(true).Width(17)
	attackStyle = lipgloss.NewStyle().Width(26)
	actionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	confidenceStyles = map[string]lipgloss.Style{
		"High":   lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		"Medium": lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("#FFAF00")),
		"Low":    lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("#5FAFFF")),
	}
	defaultConfidence = lipgloss.NewStyle().Width(8)
)

// renderResponse prints the no-findings message as-is and a report as a table
func renderResponse(resp protocol.Response) string {
	var report protocol.Report
	if err := json.Unmarshal([]byte(resp.Body), &report); err != nil {
		return mutedStyle.Render(resp.Body)
	}
	return titleStyle.Render("AI-augmented security report") + "\n" + renderReport(report)
}

func renderReport(report protocol.Report) string {
	if len(report) == 0 {
		return mutedStyle.Render("  no findings")
	}

	var b strings.Builder
	for _, f := range report {
		b.WriteString("  ")
		b.WriteString(ipStyle.Render(f.IPAddress))
		if f.Failed() {
			b.WriteString(errorStyle.Render(f.Error))
			b.WriteString("\n")
			continue
		}
		conf, ok := confidenceStyles[f.ConfidenceLevel]
		if !ok {
			conf = defaultConfidence
		}
		b.WriteString(attackStyle.Render(f.ProbableAttackType))
		b.WriteString(conf.Render(f.ConfidenceLevel))
		b.WriteString(actionStyle.Render(f.RecommendedAction))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderArchived(r protocol.ArchivedReport) string {
	header := fmt.Sprintf("%s  s3://%s/%s  %d lines, %d IPs",
		r.Timestamp.Format("2006-01-02 15:04:05"), r.Bucket, r.Key, r.Lines, r.UniqueIPs)
	return titleStyle.Render(header) + "\n" + renderReport(r.Findings)
}
