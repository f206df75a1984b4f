package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a HistoryResult as a human-readable text timeline.
func FormatTimeline(result *HistoryResult) string {
	scope := result.Archive
	if scope == "" {
		scope = "all archives"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("History: %s | No entries found.\n", scope)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("History: %s | %s–%s UTC\n", scope, first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		event := strings.ToUpper(e.Event)
		method := truncate(e.Method, 40)

		detail := ""
		switch {
		case e.Event == EventRewrite:
			detail = e.Mode
		case e.Detail != "":
			detail = truncate(e.Detail, 30)
		}

		b.WriteString(fmt.Sprintf("%-10s %-11s %-40s %s\n", ts, event, method, detail))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a HistoryResult as indented JSON.
func FormatJSON(result *HistoryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s HistorySummary) string {
	parts := []string{}
	if s.Rewrites > 0 {
		parts = append(parts, fmt.Sprintf("%d rewritten", s.Rewrites))
	}
	if s.ExactMode > 0 {
		parts = append(parts, fmt.Sprintf("%d exact-mode", s.ExactMode))
	}
	if s.Unchanged > 0 {
		parts = append(parts, fmt.Sprintf("%d unchanged", s.Unchanged))
	}
	if s.Failures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failures))
	}
	if len(parts) == 0 {
		parts = append(parts, "no activity")
	}

	return fmt.Sprintf("Summary: %s\n", strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
