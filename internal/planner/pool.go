package planner

import (
	"context"
	"sync"

	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"golang.org/x/time/rate"
)

// DefaultMaxWorkers is the MAX_WORKERS default of spec.md §4.3/§5.
const DefaultMaxWorkers = 10

// PlanAllResult pairs a target opId with its Plan, or the error
// encountered planning it (a planning error for one target never
// aborts the others).
type PlanAllResult struct {
	Target string
	Plan   *Plan
	Err    error
}

// PlanAll plans every target in targets concurrently, bounded to
// maxWorkers in flight at once and rate-limited against the shared
// oracle, the same worker-pool/semaphore shape the teacher's
// RunTestsTool uses to bound scenario concurrency. maxWorkers <= 0
// falls back to DefaultMaxWorkers.
func PlanAll(ctx context.Context, spec *specmodel.SpecModel, o *oracle.Oracle, targets []string, userGuidance string, maxWorkers int) []PlanAllResult {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	results := make([]PlanAllResult, len(targets))
	limiter := rate.NewLimiter(rate.Limit(maxWorkers), maxWorkers)
	semaphore := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(idx int, targetOpID string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := limiter.Wait(ctx); err != nil {
				results[idx] = PlanAllResult{Target: targetOpID, Err: err}
				return
			}

			plan, err := Plan(ctx, spec, o, targetOpID, userGuidance)
			results[idx] = PlanAllResult{Target: targetOpID, Plan: plan, Err: err}
		}(i, target)
	}
	wg.Wait()

	return results
}
