// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"sort"

	"github.com/emer/etable/etensor"
	"github.com/emer/sepdata/dataset"
	"github.com/pkg/errors"
)

// Batch is one collated step of training input. All tensors are batch major,
// examples are sorted by decreasing frame count and zero padded at the end.
type Batch struct {
	Keys       []string         `desc:"utterance keys in batch order"`
	InputSizes []int            `desc:"frame count of each example, non-increasing"`
	InputFeats *etensor.Float32 `desc:"[batch, max frames, bins] padded features"`
	Source     Attrs            `desc:"[batch, max frames, bins] padded source attributes"`
	Target     TargetAttrs      `desc:"one [batch, max frames, bins] tensor per target speaker"`
}

// Size is the number of examples in the batch
func (bt *Batch) Size() int {
	return len(bt.InputSizes)
}

// Process transforms every raw example and collates them into a Batch
func (eg *Engine) Process(raws []dataset.RawExample) (*Batch, error) {
	if len(raws) == 0 {
		return nil, errors.Wrap(ErrUnsupportedInput, "empty batch")
	}
	exs := make([]*Example, len(raws))
	for i, raw := range raws {
		ex, err := eg.Transform(raw)
		if err != nil {
			return nil, err
		}
		exs[i] = ex
	}
	return Collate(exs)
}

// Collate sorts transformed examples by decreasing frame count and stacks
// them into padded batch tensors. All examples must share kind, bin count and
// number of targets.
func Collate(exs []*Example) (*Batch, error) {
	if len(exs) == 0 {
		return nil, errors.Wrap(ErrUnsupportedInput, "empty batch")
	}
	first := exs[0]
	for _, ex := range exs[1:] {
		switch {
		case ex.Source.Kind != first.Source.Kind:
			return nil, errors.Wrapf(ErrUnsupportedInput, "batch mixes %v and %v examples", first.Source.Kind, ex.Source.Kind)
		case ex.Feature.Dim(1) != first.Feature.Dim(1):
			return nil, errors.Wrapf(ErrUnsupportedInput, "batch mixes %d and %d frequency bins", first.Feature.Dim(1), ex.Feature.Dim(1))
		case len(ex.Target.Spectrogram) != len(first.Target.Spectrogram):
			return nil, errors.Wrapf(ErrUnsupportedInput, "batch mixes %d and %d targets", len(first.Target.Spectrogram), len(ex.Target.Spectrogram))
		}
	}

	sorted := append([]*Example(nil), exs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NumFrames > sorted[j].NumFrames
	})

	kind := first.Source.Kind
	nspk := len(first.Target.Spectrogram)
	bt := &Batch{
		Keys:       make([]string, len(sorted)),
		InputSizes: make([]int, len(sorted)),
		Source:     Attrs{Kind: kind},
		Target:     TargetAttrs{Kind: kind},
	}
	for i, ex := range sorted {
		bt.Keys[i] = ex.Key
		bt.InputSizes[i] = ex.NumFrames
	}
	var err error
	if bt.InputFeats, err = stack(gather(sorted, func(ex *Example) *etensor.Float32 { return ex.Feature })); err != nil {
		return nil, err
	}
	if bt.Source.Spectrogram, err = stack(gather(sorted, func(ex *Example) *etensor.Float32 { return ex.Source.Spectrogram })); err != nil {
		return nil, err
	}
	for s := 0; s < nspk; s++ {
		ts, err := stack(gather(sorted, func(ex *Example) *etensor.Float32 { return ex.Target.Spectrogram[s] }))
		if err != nil {
			return nil, errors.Wrapf(err, "target %d", s)
		}
		bt.Target.Spectrogram = append(bt.Target.Spectrogram, ts)
	}
	if kind == SpectrogramWithPhase {
		if bt.Source.Phase, err = stack(gather(sorted, func(ex *Example) *etensor.Float32 { return ex.Source.Phase })); err != nil {
			return nil, err
		}
		for s := 0; s < nspk; s++ {
			ts, err := stack(gather(sorted, func(ex *Example) *etensor.Float32 { return ex.Target.Phase[s] }))
			if err != nil {
				return nil, errors.Wrapf(err, "target %d phase", s)
			}
			bt.Target.Phase = append(bt.Target.Phase, ts)
		}
	}
	return bt, nil
}

func gather(exs []*Example, get func(*Example) *etensor.Float32) []*etensor.Float32 {
	ts := make([]*etensor.Float32, len(exs))
	for i, ex := range exs {
		ts[i] = get(ex)
	}
	return ts
}

// stack copies [frames, bins] tensors into a zero initialized
// [len(ts), max frames, bins] tensor, each starting at frame 0.
// All tensors must have the bin count of the first.
func stack(ts []*etensor.Float32) (*etensor.Float32, error) {
	maxLen, bins := 0, ts[0].Dim(1)
	for i, t := range ts {
		if t.Dim(1) != bins {
			return nil, errors.Wrapf(ErrUnsupportedInput, "row %d has %d bins, expected %d", i, t.Dim(1), bins)
		}
		if t.Dim(0) > maxLen {
			maxLen = t.Dim(0)
		}
	}
	out := etensor.NewFloat32([]int{len(ts), maxLen, bins}, nil, nil)
	for b, t := range ts {
		copy(out.Values[b*maxLen*bins:(b+1)*maxLen*bins], t.Values)
	}
	return out, nil
}
