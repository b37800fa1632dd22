package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Summary is the stdout JSON object of spec.md §6, delimited by
// JSON_RESULTS_START/JSON_RESULTS_END and also persisted to
// output/results.json.
type Summary struct {
	SuccessfulOperations int     `json:"successful_operations"`
	ServerErrors         int     `json:"server_errors"`
	TotalTokens          int     `json:"total_tokens"`
	TotalCost            float64 `json:"total_cost"`
	TotalTests           int     `json:"total_tests"`
	FailedTests          int     `json:"failed_tests"`
	TimeDuration         float64 `json:"time_duration"`
}

// BuildSummary assembles the stdout/results.json summary from the
// run's aggregated stats, oracle accounting snapshot and wall-clock
// duration.
func BuildSummary(stats RunStats, duration time.Duration) Summary {
	return Summary{
		SuccessfulOperations: stats.SuccessfulOperations,
		ServerErrors:         stats.ServerErrors,
		TotalTokens:          stats.TotalTokens,
		TotalCost:            stats.TotalCost,
		TotalTests:           stats.TotalTests,
		FailedTests:          stats.FailedTests,
		TimeDuration:         duration.Seconds(),
	}
}

// RunStats is the subset of Result plus oracle accounting the CLI
// needs to build a Summary, kept separate from internal/report's
// RunStatistics: four counters come from Result.Stats and two
// (TotalTokens, TotalCost) from the oracle's accounting Snapshot.
type RunStats struct {
	SuccessfulOperations int
	ServerErrors         int
	TotalTests           int
	FailedTests          int
	TotalTokens          int
	TotalCost            float64
}

const (
	resultsStartMarker = "JSON_RESULTS_START"
	resultsEndMarker   = "JSON_RESULTS_END"
)

// WriteStdoutSummary writes the delimited JSON summary block to w.
func WriteStdoutSummary(w io.Writer, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("orchestrator: encoding summary: %w", err)
	}
	if _, err := fmt.Fprintln(w, resultsStartMarker); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, resultsEndMarker)
	return err
}
