package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// HistoryFilter holds filtering criteria for reading back run history.
type HistoryFilter struct {
	Archive string
	From    time.Time // zero value = no lower bound
	To      time.Time // zero value = no upper bound
}

// HistorySummary holds event counts for a filtered slice of the log.
type HistorySummary struct {
	Total          int    `json:"total"`
	Rewrites       int    `json:"rewrites"`
	Unchanged      int    `json:"unchanged"`
	Failures       int    `json:"failures"`
	ExactMode      int    `json:"exact_mode"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// HistoryResult holds filtered entries and their summary.
type HistoryResult struct {
	Archive string         `json:"archive"`
	Entries []Entry        `json:"entries"`
	Summary HistorySummary `json:"summary"`
}

// History reads the log and returns entries matching the filter.
func History(path string, filter HistoryFilter) (*HistoryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &HistoryResult{
		Archive: filter.Archive,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if filter.Archive != "" && entry.Archive != filter.Archive {
			continue
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *HistorySummary, entry Entry) {
	s.Total++

	switch entry.Event {
	case EventRewrite:
		s.Rewrites++
	case EventUnchanged:
		s.Unchanged++
	case EventFailure:
		s.Failures++
	}

	if entry.Mode == "exact" {
		s.ExactMode++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
