// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"github.com/chewxy/math32"
	"github.com/emer/etable/etensor"
	"github.com/emer/sepdata/dataset"
	"github.com/emer/sepdata/spectra"
	"github.com/pkg/errors"
)

// Epsilon is the floor applied before taking the log of the features,
// the float32 machine epsilon
const Epsilon = float32(1.1920929e-07)

// ErrUnsupportedInput is returned when an example or batch cannot be collated
var ErrUnsupportedInput = errors.New("batch: unsupported input")

// Kind selects which attributes an example carries
type Kind int

const (
	// SpectrogramOnly is the kind of examples with a real valued mixture
	SpectrogramOnly Kind = iota
	// SpectrogramWithPhase is the kind of examples with a complex valued mixture
	SpectrogramWithPhase
)

func (k Kind) String() string {
	if k == SpectrogramWithPhase {
		return "SpectrogramWithPhase"
	}
	return "SpectrogramOnly"
}

// KindOf returns the kind decided by the value kind of a mixture
func KindOf(mix spectra.Spectrogram) Kind {
	if mix.IsComplex() {
		return SpectrogramWithPhase
	}
	return SpectrogramOnly
}

// Attrs are the source attributes of one example ([frames, bins]) or of a
// batch ([batch, frames, bins]). Phase is nil for SpectrogramOnly.
type Attrs struct {
	Kind        Kind
	Spectrogram *etensor.Float32
	Phase       *etensor.Float32
}

// TargetAttrs hold one tensor per target speaker, in reference list order
type TargetAttrs struct {
	Kind        Kind
	Spectrogram []*etensor.Float32
	Phase       []*etensor.Float32
}

// Example is a transformed RawExample
type Example struct {
	Key       string
	NumFrames int              `desc:"frame count of the mixture"`
	Feature   *etensor.Float32 `desc:"[frames, bins] network input: magnitude, optionally log compressed and normalized"`
	Source    Attrs
	Target    TargetAttrs
}

// Transform computes the network input and the source and target attributes
// of one raw example
func (eg *Engine) Transform(raw dataset.RawExample) (*Example, error) {
	mix := raw.Mix
	if mix.Frames == 0 || mix.Bins == 0 {
		return nil, errors.Wrapf(ErrUnsupportedInput, "example %q has no frames", raw.Key)
	}
	if n := valueLen(mix); n != mix.Len() {
		return nil, errors.Wrapf(ErrUnsupportedInput, "example %q: mixture holds %d values for %dx%d",
			raw.Key, n, mix.Frames, mix.Bins)
	}
	kind := KindOf(mix)
	for r, ref := range raw.Ref {
		switch {
		case KindOf(ref) != kind:
			return nil, errors.Wrapf(ErrUnsupportedInput, "example %q: target %d is %v, mixture is %v",
				raw.Key, r, KindOf(ref), kind)
		case ref.Bins != mix.Bins:
			return nil, errors.Wrapf(ErrUnsupportedInput, "example %q: target %d has %d bins, mixture has %d",
				raw.Key, r, ref.Bins, mix.Bins)
		case valueLen(ref) != ref.Len():
			return nil, errors.Wrapf(ErrUnsupportedInput, "example %q: target %d holds %d values for %dx%d",
				raw.Key, r, valueLen(ref), ref.Frames, ref.Bins)
		}
	}

	feat := tensor(mix.Frames, mix.Bins, mix.Magnitude())
	if eg.ApplyLog {
		for i, v := range feat.Values {
			feat.Values[i] = math32.Log(math32.Max(v, Epsilon))
		}
	}
	if err := eg.Cmvn.Apply(feat); err != nil {
		return nil, errors.Wrapf(err, "example %q", raw.Key)
	}

	ex := &Example{
		Key:       raw.Key,
		NumFrames: mix.Frames,
		Feature:   feat,
		Source:    attrs(kind, mix),
		Target:    TargetAttrs{Kind: kind},
	}
	for _, ref := range raw.Ref {
		ta := attrs(kind, ref)
		ex.Target.Spectrogram = append(ex.Target.Spectrogram, ta.Spectrogram)
		if kind == SpectrogramWithPhase {
			ex.Target.Phase = append(ex.Target.Phase, ta.Phase)
		}
	}
	return ex, nil
}

func valueLen(s spectra.Spectrogram) int {
	if s.IsComplex() {
		return len(s.Complex)
	}
	return len(s.Real)
}

func attrs(kind Kind, s spectra.Spectrogram) Attrs {
	at := Attrs{Kind: kind, Spectrogram: tensor(s.Frames, s.Bins, s.Magnitude())}
	if kind == SpectrogramWithPhase {
		at.Phase = tensor(s.Frames, s.Bins, s.Phase())
	}
	return at
}

// tensor wraps vals as a [frames, bins] tensor
func tensor(frames, bins int, vals []float32) *etensor.Float32 {
	t := etensor.NewFloat32([]int{frames, bins}, nil, nil)
	copy(t.Values, vals)
	return t
}
