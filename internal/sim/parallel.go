package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/san-kum/magtrack/internal/core"
	"gonum.org/v1/gonum/stat"
)

// Ensemble repeats a run over consecutive seeds. Each repetition builds its
// own simulator, since metrics accumulate per simulator.
type Ensemble struct {
	factory   func() *Simulator
	numRuns   int
	seedStart uint64
	// Repetitions in flight at once, GOMAXPROCS when zero
	Parallel int
}

func NewEnsemble(factory func() *Simulator, numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, seedStart: seedStart}
}

// Run returns the results in seed order. Failed repetitions are reported
// together once every repetition has finished.
func (e *Ensemble) Run(ctx context.Context, primaries []core.Primary, cfg Config) ([]*Result, error) {
	limit := e.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	slots := make(chan struct{}, limit)

	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)
	var wg sync.WaitGroup
	for idx := range e.numRuns {
		wg.Add(1)
		slots <- struct{}{}
		go func() {
			defer func() { <-slots; wg.Done() }()

			runCfg := cfg
			runCfg.Seed = e.seedStart + uint64(idx)
			res, err := e.factory().Run(ctx, primaries, runCfg)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d (seed %d): %w", idx, runCfg.Seed, err)
				return
			}
			results[idx] = res
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// EnsembleStats describes the spread of the total deposit over repetitions.
type EnsembleStats struct {
	Runs        int
	MeanDeposit float64
	StdDeposit  float64
	Errored     int
}

func Summarize(results []*Result) EnsembleStats {
	deposits := make([]float64, len(results))
	s := EnsembleStats{Runs: len(results)}
	for i, r := range results {
		deposits[i] = r.TotalDeposit()
		s.Errored += r.Counts()[core.StatusErrored]
	}
	if len(deposits) == 1 {
		s.MeanDeposit = deposits[0]
	} else if len(deposits) > 1 {
		s.MeanDeposit, s.StdDeposit = stat.MeanStdDev(deposits, nil)
	}
	return s
}
