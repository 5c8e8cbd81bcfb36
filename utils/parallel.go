// Package utils contains small helpers shared by the other packages.
package utils

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	quarterProcs := float64(ParallelFactor) * .25
	if quarterProcs > 8 {
		ParallelFactor = int(quarterProcs)
	}
}

// RowWorkFunc processes rows [from, to).
type RowWorkFunc func(from, to int)

// ParallelForEachRow splits height rows into contiguous bands and runs work on each band
// in its own goroutine, at most workers at a time (ParallelFactor when workers <= 0).
// It returns once every band is done. A panic in any band is recovered and returned as
// an error; bands never overlap so work may write to per-row output without locking.
func ParallelForEachRow(height, workers int, work RowWorkFunc) error {
	if height <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = ParallelFactor
	}
	numGroups := min(workers, height)
	if numGroups == 1 {
		return runBand(work, 0, height)
	}

	groupSize := height / numGroups
	extra := height % numGroups

	var (
		wait     sync.WaitGroup
		errMu    sync.Mutex
		combined error
	)
	wait.Add(numGroups)
	from := 0
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		thisGroupSize := groupSize
		if groupNum < extra {
			thisGroupSize++
		}
		bandFrom, bandTo := from, from+thisGroupSize
		from = bandTo
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			if err := runBand(work, bandFrom, bandTo); err != nil {
				errMu.Lock()
				combined = multierr.Combine(combined, err)
				errMu.Unlock()
			}
		})
	}
	wait.Wait()
	return combined
}

func runBand(work RowWorkFunc, from, to int) (err error) {
	defer func() {
		if thePanic := recover(); thePanic != nil {
			err = errors.Errorf("panic processing rows [%d, %d): %v", from, to, thePanic)
		}
	}()
	work(from, to)
	return nil
}
