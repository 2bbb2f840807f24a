package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/visionone/internal/models"
)

// RenderMarkdown formats a report as a markdown document with a summary and an event table
func RenderMarkdown(report *models.StoredReport) string {
	var b strings.Builder

	b.WriteString("# VisionOne Session Report\n\n")
	if report.Filename != "" {
		fmt.Fprintf(&b, "**Report:** %s\n\n", report.Filename)
	}
	fmt.Fprintf(&b, "**Started:** %s\n\n", report.Timestamp)
	fmt.Fprintf(&b, "**Status:** %s\n\n", report.Status)
	if report.VideoFilename != "" {
		fmt.Fprintf(&b, "**Recording:** %s\n\n", report.VideoFilename)
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Tests Run | Passes | Failures | Healed |\n")
	b.WriteString("|-----------|--------|----------|--------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", report.TestsRun, report.Passes, report.Failures, report.HealedCount)

	b.WriteString("## Events\n\n")
	if len(report.Events) == 0 {
		b.WriteString("No events recorded.\n")
		return b.String()
	}

	b.WriteString("| Time | Type | Status | Details |\n")
	b.WriteString("|------|------|--------|---------|\n")
	for _, e := range report.Events {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(e.Timestamp), cell(e.Type), cell(e.Status), cell(e.Details))
	}
	return b.String()
}

// cell flattens a value so it cannot break the table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "-"
	}
	return s
}
