// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dft

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Params holds the short-time fourier transform settings
type Params struct {
	FrameLen  int    `def:"512" desc:"number of samples in each analysis window, also the fft size"`
	FrameHop  int    `def:"256" desc:"number of samples the window is stepped along to obtain the next frame"`
	Window    string `def:"hann" desc:"window function applied to each frame: hann, hamming, blackman, sine or rect"`
	Center    bool   `def:"true" desc:"reflect pad the signal by FrameLen/2 on both sides so frame t is centered on sample t*FrameHop"`
	Magnitude bool   `def:"false" desc:"return the magnitude of the stft instead of the complex coefficients"`
}

// Defaults initializes the Params
func (dp *Params) Defaults() {
	dp.FrameLen = 512
	dp.FrameHop = 256
	dp.Window = "hann"
	dp.Center = true
	dp.Magnitude = false
}

// windows compute symmetric windows in place, see WindowCoefs
var windows = map[string]func([]float64) []float64{
	"hann":     window.Hann,
	"hanning":  window.Hann,
	"hamming":  window.Hamming,
	"blackman": window.Blackman,
	"sine":     window.Sine,
	"rect":     window.Rectangular,
}

// Validate checks that the params describe a computable transform
func (dp *Params) Validate() error {
	if dp.FrameLen < 2 {
		return errors.Errorf("dft: frame length %d too small", dp.FrameLen)
	}
	if dp.FrameHop < 1 {
		return errors.Errorf("dft: frame hop %d must be positive", dp.FrameHop)
	}
	if _, ok := windows[strings.ToLower(dp.Window)]; !ok {
		return errors.Errorf("dft: unknown window %q", dp.Window)
	}
	return nil
}

// NumBins is the number of frequency bins up to the nyquist limit
func (dp *Params) NumBins() int {
	return dp.FrameLen/2 + 1
}

// NumFrames returns the number of frames Stft produces for a signal of n samples
func (dp *Params) NumFrames(n int) int {
	if dp.Center {
		n += 2 * (dp.FrameLen / 2)
	}
	if n < dp.FrameLen {
		return 0
	}
	return 1 + (n-dp.FrameLen)/dp.FrameHop
}

// WindowCoefs returns the FrameLen coefficients of the periodic window: the
// symmetric window of FrameLen+1 points without its last point
func (dp *Params) WindowCoefs() []float64 {
	coefs := make([]float64, dp.FrameLen+1)
	for i := range coefs {
		coefs[i] = 1
	}
	return windows[strings.ToLower(dp.Window)](coefs)[:dp.FrameLen]
}

// Stft computes the short-time fourier transform of signal.
// The result is [frames][NumBins] complex coefficients.
func (dp *Params) Stft(signal []float64) ([][]complex128, error) {
	if err := dp.Validate(); err != nil {
		return nil, err
	}
	nFrames := dp.NumFrames(len(signal))
	if dp.Center {
		signal = reflectPad(signal, dp.FrameLen/2)
	}

	win := dp.WindowCoefs()
	fft := fourier.NewFFT(dp.FrameLen)
	frame := make([]float64, dp.FrameLen)
	out := make([][]complex128, nFrames)
	for t := 0; t < nFrames; t++ {
		start := t * dp.FrameHop
		for i := range frame {
			frame[i] = signal[start+i] * win[i]
		}
		out[t] = fft.Coefficients(nil, frame)
	}
	return out, nil
}

// reflectPad mirrors pad samples at both ends of signal, excluding the edge
// sample itself. Signals too short to reflect are zero padded.
func reflectPad(signal []float64, pad int) []float64 {
	n := len(signal)
	out := make([]float64, n+2*pad)
	copy(out[pad:], signal)
	if n <= pad {
		return out
	}
	for i := 0; i < pad; i++ {
		out[pad-1-i] = signal[i+1]
		out[pad+n+i] = signal[n-2-i]
	}
	return out
}
