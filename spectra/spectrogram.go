// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spectra

import (
	"github.com/chewxy/math32"
)

// Spectrogram is a [Frames x Bins] time-frequency matrix stored row major.
// Exactly one of Real or Complex holds the values.
type Spectrogram struct {
	Frames  int
	Bins    int
	Real    []float32
	Complex []complex64
}

// NewReal returns a real valued spectrogram over vals
func NewReal(frames, bins int, vals []float32) Spectrogram {
	return Spectrogram{Frames: frames, Bins: bins, Real: vals}
}

// NewComplex returns a complex valued spectrogram over vals
func NewComplex(frames, bins int, vals []complex64) Spectrogram {
	return Spectrogram{Frames: frames, Bins: bins, Complex: vals}
}

// FromStft converts [frames][bins] stft coefficients to a 32 bit spectrogram,
// keeping only the magnitude if magnitude is set
func FromStft(stft [][]complex128, magnitude bool) Spectrogram {
	frames := len(stft)
	bins := 0
	if frames > 0 {
		bins = len(stft[0])
	}
	if magnitude {
		vals := make([]float32, 0, frames*bins)
		for _, row := range stft {
			for _, c := range row {
				vals = append(vals, math32.Hypot(float32(real(c)), float32(imag(c))))
			}
		}
		return NewReal(frames, bins, vals)
	}
	vals := make([]complex64, 0, frames*bins)
	for _, row := range stft {
		for _, c := range row {
			vals = append(vals, complex64(c))
		}
	}
	return NewComplex(frames, bins, vals)
}

// IsComplex reports whether the values are complex
func (s Spectrogram) IsComplex() bool {
	return s.Complex != nil
}

// Len is Frames * Bins
func (s Spectrogram) Len() int {
	return s.Frames * s.Bins
}

// Magnitude returns a new slice with the elementwise magnitude of a complex
// spectrogram, or a copy of the values of a real one
func (s Spectrogram) Magnitude() []float32 {
	if !s.IsComplex() {
		return append([]float32(nil), s.Real...)
	}
	out := make([]float32, len(s.Complex))
	for i, c := range s.Complex {
		out[i] = math32.Hypot(real(c), imag(c))
	}
	return out
}

// Phase returns the elementwise angle of a complex spectrogram in radians,
// nil for a real one
func (s Spectrogram) Phase() []float32 {
	if !s.IsComplex() {
		return nil
	}
	out := make([]float32, len(s.Complex))
	for i, c := range s.Complex {
		out[i] = math32.Atan2(imag(c), real(c))
	}
	return out
}
