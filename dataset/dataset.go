// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset pairs a mixture spectrogram provider with one provider per
// target speaker. Examples are indexed by the order of the mixture provider;
// the target providers are only queried by key.
package dataset

import (
	"github.com/emer/sepdata/spectra"
	"github.com/pkg/errors"
)

// ErrAlignment is returned when an example's targets are incomplete
var ErrAlignment = errors.New("dataset: targets not aligned with mixture")

// Provider is the keyed spectrogram access the set needs from each source.
// *spectra.Provider implements it.
type Provider interface {
	Size() int
	Contains(key string) bool
	KeyAt(i int) (string, error)
	Get(key string) (spectra.Spectrogram, error)
}

var _ Provider = (*spectra.Provider)(nil)

// RawExample is one mixture with its targets. Ref[i] is always the same
// speaker position of the reference list.
type RawExample struct {
	Key string
	Mix spectra.Spectrogram
	Ref []spectra.Spectrogram
}

// Options for building a Set
type Options struct {
	CheckFrames bool `def:"false" desc:"reject examples whose target frame counts differ from the mixture"`
}

// Set is the indexed collection of training examples
type Set struct {
	mix  Provider
	refs []Provider
	opts Options
}

// New returns a set over mix and the per-speaker providers refs
func New(mix Provider, refs []Provider, opts Options) (*Set, error) {
	if len(refs) == 0 {
		return nil, errors.New("dataset: at least one target provider is required")
	}
	return &Set{mix: mix, refs: append([]Provider(nil), refs...), opts: opts}, nil
}

// Size is the number of utterances of the mixture provider
func (ds *Set) Size() int {
	return ds.mix.Size()
}

// NumTargets is the number of target speakers per example
func (ds *Set) NumTargets() int {
	return len(ds.refs)
}

// Get returns the i'th example. If any target provider lacks the key the
// whole example fails with ErrAlignment.
func (ds *Set) Get(i int) (RawExample, error) {
	key, err := ds.mix.KeyAt(i)
	if err != nil {
		return RawExample{}, err
	}
	mix, err := ds.mix.Get(key)
	if err != nil {
		return RawExample{}, err
	}
	for r, ref := range ds.refs {
		if !ref.Contains(key) {
			return RawExample{}, errors.Wrapf(ErrAlignment, "key %q missing from target %d", key, r)
		}
	}
	ex := RawExample{Key: key, Mix: mix, Ref: make([]spectra.Spectrogram, len(ds.refs))}
	for r, ref := range ds.refs {
		spec, err := ref.Get(key)
		if err != nil {
			return RawExample{}, err
		}
		if ds.opts.CheckFrames && spec.Frames != mix.Frames {
			return RawExample{}, errors.Wrapf(ErrAlignment, "key %q: target %d has %d frames, mixture %d",
				key, r, spec.Frames, mix.Frames)
		}
		ex.Ref[r] = spec
	}
	return ex, nil
}

// Missing returns the mixture keys that at least one target provider lacks,
// in mixture order
func (ds *Set) Missing() []string {
	var missing []string
	for i := 0; i < ds.mix.Size(); i++ {
		key, err := ds.mix.KeyAt(i)
		if err != nil {
			break
		}
		for _, ref := range ds.refs {
			if !ref.Contains(key) {
				missing = append(missing, key)
				break
			}
		}
	}
	return missing
}
