// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sound

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
)

// ErrFormat is returned for files that are neither a valid wav nor flac stream
var ErrFormat = errors.New("sound: unsupported audio format")

type Wave struct {
	Buf *audio.IntBuffer `inactive:"+"`
}

// Load loads the sound file and decodes it. Files ending in .flac are decoded
// as flac, everything else as wav.
func (snd *Wave) Load(fn string) error {
	if strings.EqualFold(filepath.Ext(fn), ".flac") {
		return snd.loadFlac(fn)
	}
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return errors.Wrapf(ErrFormat, "%s: invalid wav file", fn)
	}
	snd.Buf, err = d.FullPCMBuffer()
	if err != nil {
		return errors.Wrapf(err, "sound.Load %s", fn)
	}
	return nil
}

// loadFlac decodes all frames of a flac stream into an interleaved IntBuffer
func (snd *Wave) loadFlac(fn string) error {
	stream, err := flac.ParseFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return errors.Wrapf(ErrFormat, "%s: %v", fn, err)
	}
	defer stream.Close()

	nch := int(stream.Info.NChannels)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nch, SampleRate: int(stream.Info.SampleRate)},
		SourceBitDepth: int(stream.Info.BitsPerSample),
		Data:           make([]int, 0, int(stream.Info.NSamples)*nch),
	}
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "sound.Load %s", fn)
		}
		for i := 0; i < frame.Subframes[0].NSamples; i++ {
			for _, sub := range frame.Subframes {
				buf.Data = append(buf.Data, int(sub.Samples[i]))
			}
		}
	}
	snd.Buf = buf
	return nil
}

// WriteWave encodes the signal data and writes it to file using the sample rate and
// other values of the buf object
func (snd *Wave) WriteWave(fn string) error {
	out, err := os.Create(fn)
	if err != nil {
		return err
	}

	PCM := 1
	e := wav.NewEncoder(out, snd.SampleRate(), snd.Buf.SourceBitDepth, snd.Channels(), PCM)
	if err = e.Write(snd.Buf); err != nil {
		out.Close()
		return errors.Wrap(err, "encoding failed on write")
	}

	if err = e.Close(); err != nil {
		out.Close()
		return errors.Wrap(err, "could not close wav file encoder")
	}
	return out.Close()
}

// SampleRate returns the sample rate of the sound or 0 is snd is nil
func (snd *Wave) SampleRate() int {
	if snd == nil || snd.Buf == nil {
		return 0
	}
	return snd.Buf.Format.SampleRate
}

// Channels returns the number of channels in the wav data or 0 is snd is nil
func (snd *Wave) Channels() int {
	if snd == nil || snd.Buf == nil {
		return 0
	}
	return snd.Buf.Format.NumChannels
}

// Samples returns one channel of the sound as float64 values normalized to -1..1.
// A channel outside the available range selects channel 0.
func (snd *Wave) Samples(channel int) []float64 {
	nch := snd.Channels()
	if nch == 0 {
		return nil
	}
	if channel < 0 || channel >= nch {
		channel = 0
	}
	nFrames := snd.Buf.NumFrames()
	out := make([]float64, nFrames)
	for i, idx := 0, channel; i < nFrames; i, idx = i+1, idx+nch {
		out[i] = float64(snd.GetFloatAtIdx(snd.Buf, idx))
	}
	return out
}

// GetFloatAtIdx
func (snd *Wave) GetFloatAtIdx(buf *audio.IntBuffer, idx int) float32 {
	if buf.SourceBitDepth == 32 {
		return float32(buf.Data[idx]) / float32(0x7FFFFFFF)
	} else if buf.SourceBitDepth == 24 {
		return float32(buf.Data[idx]) / float32(0x7FFFFF)
	} else if buf.SourceBitDepth == 16 {
		return float32(buf.Data[idx]) / float32(0x7FFF)
	} else if buf.SourceBitDepth == 8 {
		return float32(buf.Data[idx]) / float32(0x7F)
	}
	return 0
}

// Reader reads waveform locations from disk, one channel at a time
type Reader struct {
	Channel int `desc:"channel to read from multi-channel files"`
}

// ReadWave loads the file at location and returns its normalized samples
func (rd Reader) ReadWave(location string) ([]float64, error) {
	var snd Wave
	if err := snd.Load(location); err != nil {
		return nil, err
	}
	return snd.Samples(rd.Channel), nil
}
