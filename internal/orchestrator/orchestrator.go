// Package orchestrator sequences C3..C9 per target operation, per
// spec.md §4.10: plan (parallel, bounded pool), generate a baseline
// flow, derive scenarios, emit one artifact per scenario, then after
// every target has been processed, aggregate whatever reports the
// external runner produced.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"

	"github.com/blackcoderx/oasforge/internal/artifact"
	"github.com/blackcoderx/oasforge/internal/baseline"
	"github.com/blackcoderx/oasforge/internal/negative"
	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/planner"
	"github.com/blackcoderx/oasforge/internal/report"
	"github.com/blackcoderx/oasforge/internal/sender"
	"github.com/blackcoderx/oasforge/internal/specmodel"
)

// RunnerFunc executes one written artifact file (a Postman collection
// on disk) and returns the runner's raw per-collection report. It is
// the adapter seam spec.md §4.9 describes ("a runner's per-collection
// raw report, an adapter-specific structure"); nil means no execution
// step is wired and artifacts are emitted but not replayed.
type RunnerFunc func(ctx context.Context, artifactPath string) (report.RawCollectionReport, error)

// Options configures one orchestrator run.
type Options struct {
	BaseURL             string
	Targets             []string
	UserGuidance        string
	MaxWorkers          int
	MaxAttemptsPerStep  int
	MaxCapturedArrayLen int
	NegativeOptions     negative.Options
	EnvInitScript       string
	Runner              RunnerFunc
}

// TargetOutcome records what happened for one target operation.
type TargetOutcome struct {
	Target          string
	PlanErr         error
	Flow            *baseline.OperationFlow
	FailedScenarios []negative.FailedMaterialization
	ArtifactPaths   []string
	EnvInitWarnings []string
}

// Result is the full run's output, ready for the CLI's stdout summary
// and output/results.json.
type Result struct {
	Outcomes []TargetOutcome
	Suites   map[string]*report.SuiteReport
	Stats    report.RunStatistics
}

// Run executes the full per-target pipeline and writes every artifact,
// report and log into folder.
func Run(ctx context.Context, spec *specmodel.SpecModel, o *oracle.Oracle, folder *RunFolder, opts Options) (*Result, error) {
	if len(opts.Targets) == 0 {
		return nil, ErrNoTargets
	}

	planResults := planner.PlanAll(ctx, spec, o, opts.Targets, opts.UserGuidance, opts.MaxWorkers)

	snd := sender.New(opts.BaseURL)
	if opts.MaxCapturedArrayLen > 0 {
		snd = snd.WithMaxArrayLen(opts.MaxCapturedArrayLen)
	}

	result := &Result{Suites: map[string]*report.SuiteReport{}}
	var allFailed []negative.FailedMaterialization

	for _, pr := range planResults {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestrator: run cancelled before %s: %w", pr.Target, err)
		}
		outcome := TargetOutcome{Target: pr.Target}
		if pr.Err != nil {
			outcome.PlanErr = pr.Err
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if warning, err := RunEnvInitScript(ctx, opts.EnvInitScript); err != nil {
			outcome.PlanErr = err
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		} else if warning != "" {
			outcome.EnvInitWarnings = append(outcome.EnvInitWarnings, warning)
		}

		flow, err := baseline.Generate(ctx, spec, pr.Plan, o, snd, opts.MaxAttemptsPerStep)
		if err != nil {
			outcome.PlanErr = err
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		outcome.Flow = flow

		if flow.Status != baseline.StatusSuccess {
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		scenarios, failed, err := negative.Generate(ctx, o, spec, flow, opts.NegativeOptions)
		if err != nil {
			outcome.PlanErr = err
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		outcome.FailedScenarios = failed
		allFailed = append(allFailed, failed...)

		suiteName := testSuiteName(pr.Target)
		suite, ok := result.Suites[suiteName]
		if !ok {
			suite = report.NewSuite(suiteName)
			result.Suites[suiteName] = suite
		}

		for _, scenario := range scenarios {
			if warning, err := RunEnvInitScript(ctx, opts.EnvInitScript); err == nil && warning != "" {
				outcome.EnvInitWarnings = append(outcome.EnvInitWarnings, warning)
			}

			collection, err := artifact.Build(flow, scenario, opts.BaseURL)
			if err != nil {
				outcome.PlanErr = err
				continue
			}

			var buf bytes.Buffer
			if err := collection.Write(&buf); err != nil {
				outcome.PlanErr = err
				continue
			}

			path, err := folder.WriteArtifact(suiteName, scenario.Name, buf.Bytes())
			if err != nil {
				outcome.PlanErr = err
				continue
			}
			outcome.ArtifactPaths = append(outcome.ArtifactPaths, path)

			if opts.Runner == nil {
				continue
			}
			raw, err := opts.Runner(ctx, path)
			if err != nil {
				continue
			}
			caseResult := report.NormalizeCase(scenario.Name, raw)
			suite.MergeCase(caseResult)
			_ = folder.WriteCombinedData(suiteName, scenario.Name, map[string]any{
				"scenario": scenario,
				"result":   caseResult,
			})
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	if err := folder.WriteFailedMaterializations(allFailed); err != nil {
		return nil, err
	}

	var suites []*report.SuiteReport
	for name, suite := range result.Suites {
		suites = append(suites, suite)
		if err := folder.WriteSuiteReport(name, suite); err != nil {
			return nil, err
		}
	}

	// SuccessfulOperations/ServerErrors/TotalTests are generate-time
	// facts about target Flows and emitted scenarios, not runner
	// outcomes: they must hold even when opts.Runner is nil and no
	// suite ever has a case merged into it. FailedTests, in contrast,
	// is a genuine runner-reported count (tests that were replayed and
	// failed), so it still comes from the per-suite aggregate.
	stats := report.Aggregate(suites)
	stats.SuccessfulOperations, stats.ServerErrors, stats.TotalTests = 0, 0, 0
	for _, outcome := range result.Outcomes {
		if outcome.Flow == nil {
			continue
		}
		switch outcome.Flow.Status {
		case baseline.StatusSuccess:
			stats.SuccessfulOperations++
		case baseline.StatusServerError:
			stats.ServerErrors++
		}
		stats.TotalTests += len(outcome.ArtifactPaths)
	}
	result.Stats = stats

	return result, nil
}

func testSuiteName(opID string) string {
	return "Test" + toPascalCase(opID)
}

func toPascalCase(s string) string {
	var out []rune
	upperNext := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ':
			upperNext = true
		case upperNext:
			out = append(out, toUpper(r))
			upperNext = false
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// ErrNoTargets is returned when a run is requested with an empty
// target list.
var ErrNoTargets = fmt.Errorf("orchestrator: no target operations given")
