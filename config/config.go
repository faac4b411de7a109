// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"

	"github.com/emer/sepdata/batch"
	"github.com/emer/sepdata/dft"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Stft mirrors dft.Params
type Stft struct {
	FrameLen  int    `yaml:"frame_len"`
	FrameHop  int    `yaml:"frame_hop"`
	Window    string `yaml:"window"`
	Center    bool   `yaml:"center"`
	Magnitude bool   `yaml:"magnitude"`
}

// Loader mirrors batch.LoaderParams
type Loader struct {
	BatchSize int   `yaml:"batch_size"`
	Shuffle   bool  `yaml:"shuffle"`
	DropLast  bool  `yaml:"drop_last"`
	Workers   int   `yaml:"workers"`
	Prefetch  int   `yaml:"prefetch"`
	Seed      int64 `yaml:"seed"`
}

// Config describes one training data pipeline
type Config struct {
	Mix         string   `yaml:"mix"`
	Refs        []string `yaml:"refs"`
	Channel     int      `yaml:"channel"`
	Stft        Stft     `yaml:"stft"`
	ApplyLog    bool     `yaml:"apply_log"`
	Cmvn        string   `yaml:"cmvn"`
	CheckFrames bool     `yaml:"check_frames"`
	Loader      Loader   `yaml:"loader"`
	LogLevel    string   `yaml:"log_level"`
}

// Defaults fills the config with the default transform and loader settings
func (cf *Config) Defaults() {
	var dp dft.Params
	dp.Defaults()
	cf.SetDft(dp)

	var lp batch.LoaderParams
	lp.Defaults()
	cf.SetLoader(lp)

	cf.ApplyLog = true
	cf.LogLevel = "info"
}

// Load reads the yaml file fn over the defaults
func Load(fn string) (*Config, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cf := &Config{}
	cf.Defaults()
	if err := yaml.NewDecoder(f).Decode(cf); err != nil {
		return nil, errors.Wrapf(err, "config.Load %s", fn)
	}
	if err := cf.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config.Load %s", fn)
	}
	return cf, nil
}

// Validate checks that the config can build a pipeline
func (cf *Config) Validate() error {
	if cf.Mix == "" {
		return errors.New("config: mix script list is required")
	}
	if len(cf.Refs) == 0 {
		return errors.New("config: at least one reference script list is required")
	}
	dp := cf.Dft()
	if err := dp.Validate(); err != nil {
		return err
	}
	lp := cf.LoaderParams()
	return lp.Validate()
}

// Dft returns the stft settings
func (cf *Config) Dft() dft.Params {
	return dft.Params{
		FrameLen:  cf.Stft.FrameLen,
		FrameHop:  cf.Stft.FrameHop,
		Window:    cf.Stft.Window,
		Center:    cf.Stft.Center,
		Magnitude: cf.Stft.Magnitude,
	}
}

// SetDft copies dp into the config
func (cf *Config) SetDft(dp dft.Params) {
	cf.Stft = Stft{
		FrameLen:  dp.FrameLen,
		FrameHop:  dp.FrameHop,
		Window:    dp.Window,
		Center:    dp.Center,
		Magnitude: dp.Magnitude,
	}
}

// LoaderParams returns the sampling and prefetch settings
func (cf *Config) LoaderParams() batch.LoaderParams {
	return batch.LoaderParams(cf.Loader)
}

// SetLoader copies lp into the config
func (cf *Config) SetLoader(lp batch.LoaderParams) {
	cf.Loader = Loader(lp)
}
