package calculation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/lrcm/internal/domain"
)

// BatchJob is one contract measurement request
type BatchJob struct {
	Key         domain.ContractKey `json:"key"`
	TargetMonth string             `json:"target_month"`
}

// BatchItem is the outcome of one job. Exactly one of Result and Err is set.
type BatchItem struct {
	Job    BatchJob                  `json:"job"`
	Result *domain.MeasurementResult `json:"result,omitempty"`
	Err    error                     `json:"-"`
	Error  string                    `json:"error,omitempty"`
}

func newBatchItem(job BatchJob, res *domain.MeasurementResult, err error) BatchItem {
	item := BatchItem{Job: job, Result: res, Err: err}
	if err != nil {
		item.Error = err.Error()
	}
	return item
}

// BatchResult collects job outcomes in input order
type BatchResult struct {
	RunID     string        `json:"run_id"`
	Items     []BatchItem   `json:"items"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// BatchRunner dispatches independent measurements to a bounded worker pool
type BatchRunner struct {
	Engine  *MeasurementEngine
	Workers int

	// OnItem, when set, is called once per finished job from the worker goroutine
	OnItem func(BatchItem)
}

// NewBatchRunner creates a runner using the engine's configured worker count
func NewBatchRunner(engine *MeasurementEngine) *BatchRunner {
	return &BatchRunner{Engine: engine, Workers: engine.Settings.Workers}
}

// Run measures every job. Ceded contracts run after all other contracts so that the
// underlying losses they reference have been written by the time they are measured.
// A failing job does not stop the others.
func (br *BatchRunner) Run(ctx context.Context, jobs []BatchJob) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		RunID: uuid.New().String(),
		Items: make([]BatchItem, len(jobs)),
	}

	var gross, ceded []int
	for i, job := range jobs {
		result.Items[i].Job = job
		if br.isCeded(ctx, job.Key) {
			ceded = append(ceded, i)
		} else {
			gross = append(gross, i)
		}
	}

	br.Engine.Logger.Infof("batch %s: %d job(s), %d ceded, %d worker(s)", result.RunID, len(jobs), len(ceded), br.workers())
	br.runPhase(ctx, jobs, gross, result.Items)
	br.runPhase(ctx, jobs, ceded, result.Items)

	for _, item := range result.Items {
		if item.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	result.Elapsed = time.Since(start)
	return result
}

func (br *BatchRunner) runPhase(ctx context.Context, jobs []BatchJob, indices []int, items []BatchItem) {
	if len(indices) == 0 {
		return
	}
	work := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < br.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				job := jobs[i]
				res, err := br.Engine.Measure(ctx, job.Key, job.TargetMonth)
				if err != nil {
					br.Engine.Logger.Errorf("%s: %v", job.Key, err)
				}
				// each index is written by exactly one worker
				items[i] = newBatchItem(job, res, err)
				if br.OnItem != nil {
					br.OnItem(items[i])
				}
			}
		}()
	}

	for _, i := range indices {
		select {
		case work <- i:
		case <-ctx.Done():
			items[i] = newBatchItem(jobs[i], nil, ctx.Err())
		}
	}
	close(work)
	wg.Wait()
}

func (br *BatchRunner) isCeded(ctx context.Context, key domain.ContractKey) bool {
	c, err := br.Engine.Source.Contract(ctx, key.Normalize())
	return err == nil && c.Variant == domain.VariantOutward
}

func (br *BatchRunner) workers() int {
	if br.Workers < 1 {
		return 1
	}
	return br.Workers
}
