package parallel

import (
	"runtime"
	"sync"
)

type (
	WorkerFunc func(func())
	WaitFunc   func(done bool)
	CancelFunc func()
)

// Pool runs submitted functions on a fixed set of goroutines. Wait blocks
// until everything submitted so far has finished; with done set it also
// stops the workers, after which Do must not be called again.
type Pool struct {
	size    int
	wg      sync.WaitGroup
	pending sync.WaitGroup
	Do      WorkerFunc
	Wait    WaitFunc
	Cancel  CancelFunc
}

func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{
		size: numWorkers,
		Do: func(f func()) {
			f()
		},
		Wait:   func(bool) {},
		Cancel: func() {},
	}

	if numWorkers > 1 {
		workChan := make(chan func(), numWorkers)

		for range numWorkers {
			pool.wg.Go(func() {
				for {
					f, ok := <-workChan
					if !ok {
						return
					}
					f()
					pool.pending.Done()
				}
			})
		}

		pool.Do = func(f func()) {
			pool.pending.Add(1)
			workChan <- f
		}

		pool.Wait = func(done bool) {
			pool.pending.Wait()
			if done {
				pool.Cancel()
				pool.wg.Wait()
			}
		}
		pool.Cancel = sync.OnceFunc(func() { close(workChan) })
	}

	return pool
}

// Size is the number of workers the pool was started with.
func (p *Pool) Size() int {
	return p.size
}

// Split partitions [0, n) into at most Size contiguous bands, runs fn once
// per band and returns when all bands are done. Bands never overlap.
func (p *Pool) Split(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	bands := min(p.size, n)
	step := (n + bands - 1) / bands
	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		p.Do(func() { fn(lo, hi) })
	}
	p.Wait(false)
}
