// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package batch turns raw examples into padded, batch major training input.
//
// An Engine samples index batches from a Dataset, fetches the raw examples
// (optionally with a pool of background workers), transforms each example
// into features plus source and target attributes, and collates them into
// Batches sorted by decreasing frame count. Any error ends the epoch: there
// is no skipping or retrying of bad examples.
package batch

import (
	"context"

	"github.com/emer/etable/minmax"
	"github.com/emer/sepdata/cmvn"
	"go.uber.org/zap"
)

// ProgressUtterances is roughly how many utterances pass between two
// progress reports
const ProgressUtterances = 2000

// Config of an Engine
type Config struct {
	Loader   LoaderParams
	ApplyLog bool        `def:"true" desc:"log compress the features with an Epsilon floor"`
	Cmvn     *cmvn.Table `desc:"optional normalization statistics applied to the features"`
	Logger   *zap.Logger `desc:"progress reports, nil logs nothing"`
}

// Engine owns the sampler and the per-example transform
type Engine struct {
	ApplyLog bool
	Cmvn     *cmvn.Table
	Params   LoaderParams

	set     Dataset
	sampler *Sampler
	log     *zap.Logger
}

// NewEngine returns an engine batching the examples of set
func NewEngine(set Dataset, cfg Config) (*Engine, error) {
	if err := cfg.Loader.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		ApplyLog: cfg.ApplyLog,
		Cmvn:     cfg.Cmvn,
		Params:   cfg.Loader,
		set:      set,
		sampler:  NewSampler(cfg.Loader),
		log:      log,
	}, nil
}

// NumBatches is the number of batches one epoch yields
func (eg *Engine) NumBatches() int {
	return eg.sampler.NumBatches(eg.set.Size())
}

// Iter starts one epoch. The returned iterator is finite and cannot be
// restarted; call Iter again for the next epoch. Iter may be called from
// several goroutines, each iterator is used by one. The iterator must be
// drained or closed to release its workers.
func (eg *Engine) Iter(ctx context.Context) *Iterator {
	batches := eg.sampler.Epoch(eg.set.Size())
	var fd feed
	if eg.Params.Workers > 0 {
		fd = newPoolFeed(ctx, eg.set, batches, eg.Params.Workers, eg.Params.Prefetch)
	} else {
		fd = &syncFeed{set: eg.set, batches: batches}
	}
	every := ProgressUtterances / eg.Params.BatchSize
	if every < 1 {
		every = 1
	}
	it := &Iterator{eng: eg, ctx: ctx, feed: fd, every: every}
	it.frames.Init()
	return it
}

// Iterator yields the batches of one epoch
type Iterator struct {
	eng   *Engine
	ctx   context.Context
	feed  feed
	every int

	cur        *Batch
	err        error
	done       bool
	batches    int
	utterances int
	frames     minmax.AvgMax32
}

// Next advances to the next batch. It returns false when the epoch is
// exhausted or an error occurred; check Err.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	it.cur = nil
	if err := it.ctx.Err(); err != nil {
		return it.fail(err)
	}
	raws, ok, err := it.feed.next()
	if err != nil {
		return it.fail(err)
	}
	if !ok {
		it.done = true
		it.feed.stop()
		it.summary()
		return false
	}
	bt, err := it.eng.Process(raws)
	if err != nil {
		return it.fail(err)
	}

	it.cur = bt
	it.batches++
	it.utterances += bt.Size()
	for _, n := range bt.InputSizes {
		it.frames.UpdateVal(float32(n), it.utterances)
	}
	if it.batches%it.every == 0 {
		it.eng.log.Info("processed batches",
			zap.Int("batches", it.batches),
			zap.Int("utterances", it.utterances))
	}
	return true
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.done = true
	it.feed.stop()
	return false
}

func (it *Iterator) summary() {
	it.frames.CalcAvg()
	it.eng.log.Info("epoch done",
		zap.Int("batches", it.batches),
		zap.Int("utterances", it.utterances),
		zap.Float32("avg_frames", it.frames.Avg),
		zap.Float32("max_frames", it.frames.Max))
}

// Batch is the current batch, valid until the next call to Next
func (it *Iterator) Batch() *Batch {
	return it.cur
}

// Err is the error that ended the iteration, if any
func (it *Iterator) Err() error {
	return it.err
}

// Close stops the iteration early and releases the workers
func (it *Iterator) Close() {
	if !it.done {
		it.done = true
		it.feed.stop()
	}
	it.cur = nil
}

// Utterances is the number of examples yielded so far
func (it *Iterator) Utterances() int {
	return it.utterances
}

// Batches is the number of batches yielded so far
func (it *Iterator) Batches() int {
	return it.batches
}
