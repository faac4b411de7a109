// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sepbatch drives the separation training data pipeline described
// by a yaml config: it can run epochs of batches and report their shapes,
// or list the mixtures that have no complete set of targets.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/emer/sepdata/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	var cfgFile string
	var epochs int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "iterate over the batches of the configured dataset and log their shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := newLogger(cf.LogLevel, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cf, epochs, log)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "sepbatch.yaml", "pipeline config file")
	cmd.Flags().IntVar(&epochs, "epochs", 1, "number of passes over the dataset")
	return cmd
}

func run(ctx context.Context, cf *config.Config, epochs int, log *zap.Logger) error {
	eg, err := cf.Engine(log)
	if err != nil {
		return err
	}
	for ep := 0; ep < epochs; ep++ {
		log.Info("epoch start", zap.Int("epoch", ep), zap.Int("batches", eg.NumBatches()))
		it := eg.Iter(ctx)
		for it.Next() {
			bt := it.Batch()
			log.Debug("batch",
				zap.Int("epoch", ep),
				zap.Int("batch", it.Batches()),
				zap.Ints("input_feats", bt.InputFeats.Shapes()),
				zap.Ints("input_sizes", bt.InputSizes),
				zap.Int("targets", len(bt.Target.Spectrogram)),
				zap.Stringer("kind", bt.Source.Kind))
		}
		if err := it.Err(); err != nil {
			log.Error("epoch failed", zap.Int("epoch", ep), zap.Int("utterances", it.Utterances()), zap.Error(err))
			return err
		}
	}
	return nil
}

func keysCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "print the mixture keys lacking a target in any reference list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return keys(cf, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "sepbatch.yaml", "pipeline config file")
	return cmd
}

func keys(cf *config.Config, w io.Writer) error {
	set, err := cf.Dataset()
	if err != nil {
		return err
	}
	for _, k := range set.Missing() {
		fmt.Fprintln(w, k)
	}
	return nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sepbatch",
		Short:         "separation training data pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd())
	root.AddCommand(keysCmd())
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sepbatch:", err)
		os.Exit(1)
	}
}
