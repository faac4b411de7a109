// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataset

import (
	"testing"

	"github.com/emer/sepdata/spectra"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memProvider serves spectrograms from memory in the order of keys
type memProvider struct {
	keys  []string
	specs map[string]spectra.Spectrogram
	gets  int
}

func newMem(frames map[string]int, keys ...string) *memProvider {
	mp := &memProvider{keys: keys, specs: make(map[string]spectra.Spectrogram)}
	for _, k := range keys {
		n := frames[k]
		mp.specs[k] = spectra.NewReal(n, 2, make([]float32, n*2))
	}
	return mp
}

func (mp *memProvider) Size() int { return len(mp.keys) }

func (mp *memProvider) Contains(key string) bool {
	_, ok := mp.specs[key]
	return ok
}

func (mp *memProvider) KeyAt(i int) (string, error) {
	if i < 0 || i >= len(mp.keys) {
		return "", errors.Wrapf(spectra.ErrLookup, "index %d", i)
	}
	return mp.keys[i], nil
}

func (mp *memProvider) Get(key string) (spectra.Spectrogram, error) {
	mp.gets++
	s, ok := mp.specs[key]
	if !ok {
		return spectra.Spectrogram{}, errors.Wrapf(spectra.ErrLookup, "%q", key)
	}
	return s, nil
}

var frames = map[string]int{"u1": 3, "u2": 5, "u3": 4}

func TestGetUsesMixtureOrder(t *testing.T) {
	mix := newMem(frames, "u2", "u1", "u3")
	// targets list keys in a different order
	ref0 := newMem(frames, "u3", "u1", "u2")
	ref1 := newMem(frames, "u1", "u2", "u3")
	ds, err := New(mix, []Provider{ref0, ref1}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Size())
	assert.Equal(t, 2, ds.NumTargets())

	ex, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "u2", ex.Key)
	assert.Equal(t, 5, ex.Mix.Frames)
	require.Len(t, ex.Ref, 2)
	for _, r := range ex.Ref {
		assert.Equal(t, 5, r.Frames)
	}
}

func TestGetMissingTargetFails(t *testing.T) {
	mix := newMem(frames, "u1", "u2")
	ref0 := newMem(frames, "u1", "u2")
	ref1 := newMem(frames, "u1")
	ds, err := New(mix, []Provider{ref0, ref1}, Options{})
	require.NoError(t, err)

	ex, err := ds.Get(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlignment))
	assert.Nil(t, ex.Ref)
	// no target was fetched for the bad key
	assert.Equal(t, 0, ref0.gets)

	_, err = ds.Get(0)
	assert.NoError(t, err)
}

func TestGetOutOfRange(t *testing.T) {
	ds, err := New(newMem(frames, "u1"), []Provider{newMem(frames, "u1")}, Options{})
	require.NoError(t, err)
	_, err = ds.Get(1)
	assert.True(t, errors.Is(err, spectra.ErrLookup))
}

func TestCheckFrames(t *testing.T) {
	mix := newMem(frames, "u1")
	ref := newMem(map[string]int{"u1": 7}, "u1")

	ds, err := New(mix, []Provider{ref}, Options{})
	require.NoError(t, err)
	ex, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 7, ex.Ref[0].Frames)

	ds, err = New(mix, []Provider{ref}, Options{CheckFrames: true})
	require.NoError(t, err)
	_, err = ds.Get(0)
	assert.True(t, errors.Is(err, ErrAlignment))
}

func TestNewNeedsTargets(t *testing.T) {
	_, err := New(newMem(frames, "u1"), nil, Options{})
	assert.Error(t, err)
}

func TestMissing(t *testing.T) {
	mix := newMem(frames, "u1", "u2", "u3")
	ds, err := New(mix, []Provider{newMem(frames, "u1", "u3"), newMem(frames, "u3", "u2")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ds.Missing())
}
