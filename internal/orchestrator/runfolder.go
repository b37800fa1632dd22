package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// RunFolder is the filesystem layout of one run, per spec.md §6:
// tests/<suite>/<case>.postman_collection.json, reports/<suite>.json,
// combined_data/<suite>/<case>.json, failed_testcase_value_generations.json
// and output/results.json, all relative to a run folder named
// <specName>.<YYYYMMDD_HHMMSS>.
type RunFolder struct {
	Root string
}

// NewRunFolder creates the run folder and its subdirectories under
// parentDir, named "<specName>.<timestamp>".
func NewRunFolder(parentDir, specName, timestamp string) (*RunFolder, error) {
	root := filepath.Join(parentDir, fmt.Sprintf("%s.%s", sanitizeName(specName), timestamp))
	for _, sub := range []string{"tests", "reports", "combined_data", "output"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("orchestrator: creating run folder %q: %w", filepath.Join(root, sub), err)
		}
	}
	return &RunFolder{Root: root}, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// WriteArtifact writes one scenario's serialized collection JSON to
// tests/<suite>/<case>.postman_collection.json.
func (r *RunFolder) WriteArtifact(suite, testCase string, data []byte) (string, error) {
	dir := filepath.Join(r.Root, "tests", suite)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("orchestrator: creating suite folder %q: %w", dir, err)
	}
	path := filepath.Join(dir, testCase+".postman_collection.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("orchestrator: writing artifact %q: %w", path, err)
	}
	return path, nil
}

// WriteSuiteReport writes an aggregated SuiteReport to
// reports/<suite>.json.
func (r *RunFolder) WriteSuiteReport(suite string, v any) error {
	return r.writeJSON(filepath.Join(r.Root, "reports", suite+".json"), v)
}

// WriteCombinedData writes a scenario's input snapshot plus executed
// results to combined_data/<suite>/<case>.json.
func (r *RunFolder) WriteCombinedData(suite, testCase string, v any) error {
	dir := filepath.Join(r.Root, "combined_data", suite)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating combined_data folder %q: %w", dir, err)
	}
	return r.writeJSON(filepath.Join(dir, testCase+".json"), v)
}

// WriteFailedMaterializations writes the run's
// failed_testcase_value_generations.json log.
func (r *RunFolder) WriteFailedMaterializations(v any) error {
	return r.writeJSON(filepath.Join(r.Root, "failed_testcase_value_generations.json"), v)
}

// WriteResultsSummary writes the run's output/results.json.
func (r *RunFolder) WriteResultsSummary(v any) error {
	return r.writeJSON(filepath.Join(r.Root, "output", "results.json"), v)
}

func (r *RunFolder) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: encoding %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: writing %q: %w", path, err)
	}
	return nil
}
