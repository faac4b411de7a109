// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spectra

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/emer/sepdata/dft"
	"github.com/emer/sepdata/scp"
	"github.com/emer/sepdata/sound"
	"github.com/go-audio/audio"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader serves fixed signals and counts reads
type countingReader struct {
	signals map[string][]float64
	reads   int32
}

func (cr *countingReader) ReadWave(loc string) ([]float64, error) {
	atomic.AddInt32(&cr.reads, 1)
	s, ok := cr.signals[loc]
	if !ok {
		return nil, os.ErrNotExist
	}
	return s, nil
}

func testParams() dft.Params {
	return dft.Params{FrameLen: 8, FrameHop: 4, Window: "hann", Center: true}
}

func newTestProvider(t *testing.T, magnitude bool) (*Provider, *countingReader) {
	t.Helper()
	ix := scp.NewIndex()
	require.NoError(t, ix.Add("b", "b.wav"))
	require.NoError(t, ix.Add("a", "a.wav"))
	rd := &countingReader{signals: map[string][]float64{
		"a.wav": make([]float64, 32),
		"b.wav": make([]float64, 16),
	}}
	p := testParams()
	p.Magnitude = magnitude
	return FromIndex(ix, rd, StftTransform{Params: p}), rd
}

func TestProviderContract(t *testing.T) {
	pr, _ := newTestProvider(t, false)
	assert.Equal(t, 2, pr.Size())
	assert.True(t, pr.Contains("a"))
	assert.False(t, pr.Contains("c"))
	assert.Equal(t, []string{"b", "a"}, pr.Keys())

	k, err := pr.KeyAt(1)
	require.NoError(t, err)
	assert.Equal(t, "a", k)

	_, err = pr.KeyAt(2)
	assert.True(t, errors.Is(err, ErrLookup))

	spec, err := pr.Get("a")
	require.NoError(t, err)
	assert.True(t, spec.IsComplex())
	assert.Equal(t, 9, spec.Frames)
	assert.Equal(t, 5, spec.Bins)
	assert.Len(t, spec.Complex, 45)

	_, err = pr.Get("c")
	assert.True(t, errors.Is(err, ErrLookup))
}

func TestProviderMagnitude(t *testing.T) {
	pr, _ := newTestProvider(t, true)
	spec, err := pr.Get("b")
	require.NoError(t, err)
	assert.False(t, spec.IsComplex())
	assert.Len(t, spec.Real, spec.Len())
}

func TestProviderRecomputes(t *testing.T) {
	pr, rd := newTestProvider(t, false)
	for i := 0; i < 3; i++ {
		_, err := pr.Get("a")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&rd.reads))
}

func TestProviderConcurrentGet(t *testing.T) {
	pr, _ := newTestProvider(t, false)
	want, err := pr.Get("a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	specs := make([]Spectrogram, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "a"
			if i%2 == 1 {
				key = "b"
			}
			specs[i], errs[i] = pr.Get(key)
		}(i)
	}
	wg.Wait()
	for i := range errs {
		require.NoError(t, errs[i])
		if i%2 == 0 {
			assert.Equal(t, want, specs[i])
		}
	}
}

func TestNewProviderMissingScp(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "none.scp"), sound.Reader{}, StftTransform{Params: testParams()})
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestNewProviderDuplicateScp(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "dup.scp")
	require.NoError(t, os.WriteFile(fn, []byte("a 1.wav\na 2.wav\n"), 0o644))
	_, err := NewProvider(fn, sound.Reader{}, StftTransform{Params: testParams()})
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestProviderFromWaveFiles(t *testing.T) {
	dir := t.TempDir()
	var lines string
	for i, n := range []int{1600, 800} {
		data := make([]int, n)
		for j := range data {
			data[j] = int(8000 * math.Sin(2*math.Pi*440*float64(j)/16000))
		}
		snd := sound.Wave{Buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
			SourceBitDepth: 16,
			Data:           data,
		}}
		fn := filepath.Join(dir, fmt.Sprintf("u%d.wav", i))
		require.NoError(t, snd.WriteWave(fn))
		lines += fmt.Sprintf("u%d %s\n", i, fn)
	}
	scpFn := filepath.Join(dir, "wav.scp")
	require.NoError(t, os.WriteFile(scpFn, []byte(lines), 0o644))

	var p dft.Params
	p.Defaults()
	pr, err := NewProvider(scpFn, sound.Reader{}, StftTransform{Params: p})
	require.NoError(t, err)

	spec, err := pr.Get("u0")
	require.NoError(t, err)
	assert.Equal(t, p.NumFrames(1600), spec.Frames)
	assert.Equal(t, p.NumBins(), spec.Bins)

	spec, err = pr.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, p.NumFrames(800), spec.Frames)
}

func TestProviderReadError(t *testing.T) {
	ix := scp.NewIndex()
	require.NoError(t, ix.Add("gone", "gone.wav"))
	pr := FromIndex(ix, &countingReader{}, StftTransform{Params: testParams()})
	_, err := pr.Get("gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), `"gone"`)
}
