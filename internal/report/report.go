// Package report implements the report aggregator of spec.md §4.9: it
// normalizes a runner's per-collection raw report into a SuiteReport,
// then merges cases into a suite by name, replacing rather than
// duplicating repeated runs of the same case.
package report

// RawExecutionAssertion is one assertion outcome from a runner's raw,
// adapter-specific report for a single collection item.
type RawExecutionAssertion struct {
	Name  string
	Error string // empty if the assertion passed
}

// RawExecution is one collection item's outcome as the runner reports
// it, before normalization.
type RawExecution struct {
	ItemName       string
	StatusCode     int
	TransportError string // non-empty if no response was ever received
	Assertions     []RawExecutionAssertion
}

// RawCollectionReport is the runner's report for one executed
// collection (one TestCase artifact), in adapter-specific shape.
type RawCollectionReport struct {
	CollectionName string
	Executions     []RawExecution
}

// StepResult is one normalized step outcome within a case.
type StepResult struct {
	Name        string
	Passed      bool
	StatusCode  int
	ServerError bool
	Assertions  []RawExecutionAssertion
}

// CaseResult is one normalized TestCase outcome: all steps of one
// executed artifact.
type CaseResult struct {
	Name        string
	Passed      bool
	ServerError bool
	Steps       []StepResult
}

// SuiteReport is the aggregated TestSuite outcome: the accumulated set
// of cases plus totals, per spec.md's "TestCaseResult / SuiteReport"
// glossary entry.
type SuiteReport struct {
	Name                string
	Cases               []CaseResult
	Total               int
	Passed              int
	Failed              int
	ServerErrors        int
	SuccessRate         float64
	AverageStepsPerCase float64
}

// NewSuite starts an empty suite report for the given TestSuite name.
func NewSuite(name string) *SuiteReport {
	return &SuiteReport{Name: name}
}

// NormalizeCase turns a runner's raw per-collection report into a
// CaseResult: per step, Pass requires every assertion to have passed
// and a response to have been received at all; ServerError is a 5xx
// status or a transport failure before any status arrived.
func NormalizeCase(caseName string, raw RawCollectionReport) CaseResult {
	steps := make([]StepResult, 0, len(raw.Executions))
	casePassed := true
	caseServerError := false

	for _, ex := range raw.Executions {
		serverError := ex.TransportError != "" || (ex.StatusCode >= 500 && ex.StatusCode <= 599)
		passed := ex.TransportError == "" && allAssertionsPassed(ex.Assertions)

		steps = append(steps, StepResult{
			Name:        ex.ItemName,
			Passed:      passed,
			StatusCode:  ex.StatusCode,
			ServerError: serverError,
			Assertions:  ex.Assertions,
		})

		if !passed {
			casePassed = false
		}
		if serverError {
			caseServerError = true
		}
	}

	return CaseResult{Name: caseName, Passed: casePassed, ServerError: caseServerError, Steps: steps}
}

func allAssertionsPassed(assertions []RawExecutionAssertion) bool {
	for _, a := range assertions {
		if a.Error != "" {
			return false
		}
	}
	return true
}

// MergeCase adds c to the suite, replacing any existing case with the
// same name rather than duplicating it, then recomputes aggregates.
func (s *SuiteReport) MergeCase(c CaseResult) {
	for i := range s.Cases {
		if s.Cases[i].Name == c.Name {
			s.Cases[i] = c
			s.recompute()
			return
		}
	}
	s.Cases = append(s.Cases, c)
	s.recompute()
}

func (s *SuiteReport) recompute() {
	s.Total = len(s.Cases)
	s.Passed, s.Failed, s.ServerErrors = 0, 0, 0
	totalSteps := 0

	for _, c := range s.Cases {
		if c.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		if c.ServerError {
			s.ServerErrors++
		}
		totalSteps += len(c.Steps)
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total)
		s.AverageStepsPerCase = float64(totalSteps) / float64(s.Total)
	}
}

// RunStatistics is the cross-suite aggregate consumed by the
// orchestrator's stdout JSON summary (spec.md §6).
type RunStatistics struct {
	SuccessfulOperations int
	ServerErrors         int
	TotalTests           int
	FailedTests          int
}

// Aggregate reuses each suite's already-computed per-suite counters,
// per spec.md §4.9 ("cross-suite statistics reuse per-suite counters").
func Aggregate(suites []*SuiteReport) RunStatistics {
	var stats RunStatistics
	for _, s := range suites {
		stats.SuccessfulOperations += s.Passed
		stats.ServerErrors += s.ServerErrors
		stats.TotalTests += s.Total
		stats.FailedTests += s.Failed
	}
	return stats
}
