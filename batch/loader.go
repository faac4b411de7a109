// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"context"
	"math/rand"
	"sync"

	"github.com/emer/sepdata/dataset"
	"github.com/pkg/errors"
)

// Dataset is the indexed example source the loader samples from.
// *dataset.Set implements it.
type Dataset interface {
	Size() int
	Get(i int) (dataset.RawExample, error)
}

var _ Dataset = (*dataset.Set)(nil)

// LoaderParams control sampling and prefetching
type LoaderParams struct {
	BatchSize int   `def:"16" desc:"number of examples per batch"`
	Shuffle   bool  `def:"true" desc:"visit the examples in a random order each epoch"`
	DropLast  bool  `def:"false" desc:"discard a trailing batch smaller than BatchSize"`
	Workers   int   `def:"4" desc:"goroutines fetching raw examples in the background -- 0 fetches in the consumer goroutine"`
	Prefetch  int   `def:"2" desc:"number of fetched batches buffered ahead of the consumer"`
	Seed      int64 `desc:"seed of the shuffle"`
}

// Defaults initializes the LoaderParams
func (lp *LoaderParams) Defaults() {
	lp.BatchSize = 16
	lp.Shuffle = true
	lp.DropLast = false
	lp.Workers = 4
	lp.Prefetch = 2
	lp.Seed = 0
}

// Validate checks the params
func (lp *LoaderParams) Validate() error {
	if lp.BatchSize < 1 {
		return errors.Errorf("batch: batch size %d must be positive", lp.BatchSize)
	}
	if lp.Workers < 0 || lp.Prefetch < 0 {
		return errors.Errorf("batch: workers (%d) and prefetch (%d) must not be negative", lp.Workers, lp.Prefetch)
	}
	return nil
}

// Sampler splits the indices 0..n-1 into batches. With shuffle, each epoch
// draws a new permutation from a generator seeded once with seed.
// Epoch may be called from several goroutines.
type Sampler struct {
	Params LoaderParams
	mu     sync.Mutex
	rnd    *rand.Rand
}

// NewSampler returns a sampler for params
func NewSampler(lp LoaderParams) *Sampler {
	return &Sampler{Params: lp, rnd: rand.New(rand.NewSource(lp.Seed))}
}

// Epoch returns the index batches of one pass over n examples
func (sm *Sampler) Epoch(n int) [][]int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if sm.Params.Shuffle {
		sm.mu.Lock()
		sm.rnd.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		sm.mu.Unlock()
	}
	bs := sm.Params.BatchSize
	var batches [][]int
	for start := 0; start < n; start += bs {
		end := start + bs
		if end > n {
			if sm.Params.DropLast {
				break
			}
			end = n
		}
		batches = append(batches, order[start:end])
	}
	return batches
}

// NumBatches is the number of batches of an epoch over n examples
func (sm *Sampler) NumBatches(n int) int {
	bs := sm.Params.BatchSize
	if sm.Params.DropLast {
		return n / bs
	}
	return (n + bs - 1) / bs
}

// feed delivers the raw examples of an epoch's batches in order
type feed interface {
	// next returns the next raw batch, ok is false once the epoch is exhausted
	next() (raws []dataset.RawExample, ok bool, err error)
	stop()
}

func fetch(set Dataset, idx []int) ([]dataset.RawExample, error) {
	raws := make([]dataset.RawExample, len(idx))
	for i, ix := range idx {
		ex, err := set.Get(ix)
		if err != nil {
			return nil, err
		}
		raws[i] = ex
	}
	return raws, nil
}

// syncFeed fetches each batch in the consumer goroutine
type syncFeed struct {
	set     Dataset
	batches [][]int
	pos     int
}

func (sf *syncFeed) next() ([]dataset.RawExample, bool, error) {
	if sf.pos >= len(sf.batches) {
		return nil, false, nil
	}
	idx := sf.batches[sf.pos]
	sf.pos++
	raws, err := fetch(sf.set, idx)
	return raws, true, err
}

func (sf *syncFeed) stop() {
	sf.pos = len(sf.batches)
}

// pending is a batch being filled by the workers. Each worker writes only its
// own slot, the consumer reads the slots after done is closed.
type pending struct {
	raws []dataset.RawExample
	errs []error
	wg   sync.WaitGroup
	done chan struct{}
}

type job struct {
	pd   *pending
	slot int
	idx  int
}

// poolFeed fetches examples with a pool of workers, keeping up to Prefetch
// batches ready ahead of the consumer
type poolFeed struct {
	ctx    context.Context
	out    chan *pending
	cancel context.CancelFunc
}

func newPoolFeed(ctx context.Context, set Dataset, batches [][]int, workers, prefetch int) *poolFeed {
	ctx, cancel := context.WithCancel(ctx)
	pf := &poolFeed{ctx: ctx, out: make(chan *pending, prefetch), cancel: cancel}
	jobs := make(chan job)

	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobs {
				if ctx.Err() == nil {
					j.pd.raws[j.slot], j.pd.errs[j.slot] = set.Get(j.idx)
				}
				j.pd.wg.Done()
			}
		}()
	}

	go func() {
		defer close(pf.out)
		defer close(jobs)
		for _, idx := range batches {
			pd := &pending{
				raws: make([]dataset.RawExample, len(idx)),
				errs: make([]error, len(idx)),
				done: make(chan struct{}),
			}
			pd.wg.Add(len(idx))
			go func() {
				pd.wg.Wait()
				close(pd.done)
			}()
			for slot, ix := range idx {
				select {
				case jobs <- job{pd: pd, slot: slot, idx: ix}:
				case <-ctx.Done():
					// release the slots no worker will fill
					pd.wg.Add(slot - len(idx))
					return
				}
			}
			select {
			case pf.out <- pd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return pf
}

func (pf *poolFeed) next() ([]dataset.RawExample, bool, error) {
	pd, ok := <-pf.out
	if !ok {
		return nil, false, pf.ctx.Err()
	}
	<-pd.done
	if err := pf.ctx.Err(); err != nil {
		return nil, false, err
	}
	for _, err := range pd.errs {
		if err != nil {
			return nil, true, err
		}
	}
	return pd.raws, true, nil
}

func (pf *poolFeed) stop() {
	pf.cancel()
}
