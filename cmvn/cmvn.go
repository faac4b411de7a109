// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmvn applies precomputed cepstral mean and variance normalization
// statistics to [frames, bins] feature tensors. The statistics are stored as a
// msgpack encoded map from statistic name ("mean", "std") to one value per
// frequency bin.
package cmvn

import (
	"io"
	"os"

	"github.com/emer/etable/etensor"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	MeanKey = "mean"
	StdKey  = "std"
)

// Table holds per-bin statistics. It is never modified after construction and
// may be shared by any number of goroutines. A nil *Table applies no
// normalization.
type Table struct {
	mean []float32
	std  []float32
}

// New builds a table from per-bin statistics. Either slice may be nil, in
// which case that part of the normalization is skipped.
func New(mean, std []float64) (*Table, error) {
	if mean != nil && std != nil && len(mean) != len(std) {
		return nil, errors.Errorf("cmvn: %d mean values but %d std values", len(mean), len(std))
	}
	tb := &Table{mean: to32(mean), std: to32(std)}
	for i, s := range tb.std {
		if s <= 0 {
			return nil, errors.Errorf("cmvn: std of bin %d is %g, must be positive", i, s)
		}
	}
	return tb, nil
}

// Load reads a table from the msgpack file fn
func Load(fn string) (*Table, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tb, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cmvn.Load %s", fn)
	}
	return tb, nil
}

// Decode reads a msgpack encoded statistics map from r. Unknown statistics
// are ignored.
func Decode(r io.Reader) (*Table, error) {
	var stats map[string][]float64
	if err := msgpack.NewDecoder(r).Decode(&stats); err != nil {
		return nil, errors.Wrap(err, "cmvn: decode")
	}
	return New(stats[MeanKey], stats[StdKey])
}

// Encode writes the table as a msgpack statistics map
func (tb *Table) Encode(w io.Writer) error {
	stats := make(map[string][]float64)
	if tb.mean != nil {
		stats[MeanKey] = to64(tb.mean)
	}
	if tb.std != nil {
		stats[StdKey] = to64(tb.std)
	}
	return msgpack.NewEncoder(w).Encode(stats)
}

// Bins is the number of frequency bins covered by the table
func (tb *Table) Bins() int {
	if tb == nil {
		return 0
	}
	if tb.mean != nil {
		return len(tb.mean)
	}
	return len(tb.std)
}

// Apply normalizes a [frames, bins] tensor in place: the mean is subtracted
// and the result divided by the std, bin by bin.
func (tb *Table) Apply(feat *etensor.Float32) error {
	if tb == nil || (tb.mean == nil && tb.std == nil) {
		return nil
	}
	if feat.NumDims() != 2 {
		return errors.Errorf("cmvn: expected a [frames, bins] tensor, got %d dims", feat.NumDims())
	}
	bins := feat.Dim(1)
	if bins != tb.Bins() {
		return errors.Errorf("cmvn: table has %d bins, features have %d", tb.Bins(), bins)
	}
	vals := feat.Values
	for i := range vals {
		b := i % bins
		if tb.mean != nil {
			vals[i] -= tb.mean[b]
		}
		if tb.std != nil {
			vals[i] /= tb.std[b]
		}
	}
	return nil
}

func to32(v []float64) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func to64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
