// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spectra provides keyed, read-only access to the spectrograms of the
// utterances listed in a script list. Spectrograms are computed from the
// source audio on every Get; nothing is cached.
package spectra

import (
	"os"

	"github.com/emer/sepdata/dft"
	"github.com/emer/sepdata/scp"
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned when the backing script list is missing or invalid
	ErrConfiguration = errors.New("spectra: configuration error")
	// ErrLookup is returned for keys the provider does not know
	ErrLookup = errors.New("spectra: key not found")
)

// WaveReader loads the samples stored at a waveform location
type WaveReader interface {
	ReadWave(location string) ([]float64, error)
}

// Transformer turns samples into a spectrogram
type Transformer interface {
	Transform(signal []float64) (Spectrogram, error)
}

// StftTransform is the Transformer computing a short-time fourier transform
type StftTransform struct {
	dft.Params
}

// Transform computes the stft of signal, as magnitude if Params.Magnitude is set
func (st StftTransform) Transform(signal []float64) (Spectrogram, error) {
	coefs, err := st.Stft(signal)
	if err != nil {
		return Spectrogram{}, err
	}
	return FromStft(coefs, st.Magnitude), nil
}

// Provider computes spectrograms for the keys of a script list
type Provider struct {
	index  *scp.Index
	reader WaveReader
	tf     Transformer
}

// NewProvider loads the script list fn. It fails with ErrConfiguration if the
// file does not exist or cannot be parsed.
func NewProvider(fn string, rd WaveReader, tf Transformer) (*Provider, error) {
	ix, err := scp.Load(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfiguration, "script list %s does not exist", fn)
		}
		return nil, errors.Wrapf(ErrConfiguration, "%v", err)
	}
	return FromIndex(ix, rd, tf), nil
}

// FromIndex returns a provider over an already built index
func FromIndex(ix *scp.Index, rd WaveReader, tf Transformer) *Provider {
	return &Provider{index: ix, reader: rd, tf: tf}
}

// Size is the number of known utterances
func (pr *Provider) Size() int {
	return pr.index.Len()
}

// Contains reports whether key is known
func (pr *Provider) Contains(key string) bool {
	_, ok := pr.index.Location(key)
	return ok
}

// KeyAt returns the i'th key in script list order
func (pr *Provider) KeyAt(i int) (string, error) {
	if i < 0 || i >= pr.index.Len() {
		return "", errors.Wrapf(ErrLookup, "index %d out of range [0, %d)", i, pr.index.Len())
	}
	return pr.index.Key(i), nil
}

// Keys returns all keys in script list order
func (pr *Provider) Keys() []string {
	return pr.index.Keys()
}

// Get reads the waveform of key and computes its spectrogram
func (pr *Provider) Get(key string) (Spectrogram, error) {
	loc, ok := pr.index.Location(key)
	if !ok {
		return Spectrogram{}, errors.Wrapf(ErrLookup, "%q", key)
	}
	signal, err := pr.reader.ReadWave(loc)
	if err != nil {
		return Spectrogram{}, errors.Wrapf(err, "key %q", key)
	}
	spec, err := pr.tf.Transform(signal)
	if err != nil {
		return Spectrogram{}, errors.Wrapf(err, "key %q", key)
	}
	return spec, nil
}
