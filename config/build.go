// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"github.com/emer/sepdata/batch"
	"github.com/emer/sepdata/cmvn"
	"github.com/emer/sepdata/dataset"
	"github.com/emer/sepdata/sound"
	"github.com/emer/sepdata/spectra"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dataset opens the mixture and reference script lists and pairs them
func (cf *Config) Dataset() (*dataset.Set, error) {
	rd := sound.Reader{Channel: cf.Channel}
	tf := spectra.StftTransform{Params: cf.Dft()}

	mix, err := spectra.NewProvider(cf.Mix, rd, tf)
	if err != nil {
		return nil, err
	}
	refs := make([]dataset.Provider, len(cf.Refs))
	for i, fn := range cf.Refs {
		pr, err := spectra.NewProvider(fn, rd, tf)
		if err != nil {
			return nil, err
		}
		refs[i] = pr
	}
	return dataset.New(mix, refs, dataset.Options{CheckFrames: cf.CheckFrames})
}

// Engine builds the dataset and the batching engine on top of it.
// log may be nil.
func (cf *Config) Engine(log *zap.Logger) (*batch.Engine, error) {
	set, err := cf.Dataset()
	if err != nil {
		return nil, err
	}
	var table *cmvn.Table
	if cf.Cmvn != "" {
		table, err = cmvn.Load(cf.Cmvn)
		if err != nil {
			return nil, errors.Wrapf(spectra.ErrConfiguration, "cmvn %s: %v", cf.Cmvn, err)
		}
	}
	return batch.NewEngine(set, batch.Config{
		Loader:   cf.LoaderParams(),
		ApplyLog: cf.ApplyLog,
		Cmvn:     table,
		Logger:   log,
	})
}
