package orchestrator

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTestSuiteNamePascalCases(t *testing.T) {
	cases := map[string]string{
		"getUser":      "TestGetUser",
		"get_user":     "TestGetUser",
		"list-widgets": "TestListWidgets",
	}
	for in, want := range cases {
		if got := testSuiteName(in); got != want {
			t.Errorf("testSuiteName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteStdoutSummaryWrapsDelimiters(t *testing.T) {
	var buf bytes.Buffer
	summary := BuildSummary(RunStats{SuccessfulOperations: 2, TotalTests: 3}, 1500*time.Millisecond)

	if err := WriteStdoutSummary(&buf, summary); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "JSON_RESULTS_START\n") {
		t.Fatalf("expected start marker, got %q", out)
	}
	if !strings.HasSuffix(out, "JSON_RESULTS_END\n") {
		t.Fatalf("expected end marker, got %q", out)
	}
	if !strings.Contains(out, `"successful_operations":2`) {
		t.Fatalf("expected summary fields in JSON body, got %q", out)
	}
}
