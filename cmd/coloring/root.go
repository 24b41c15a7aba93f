/*
	Copyright 2023 Google Inc.
	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at
		https://www.apache.org/licenses/LICENSE-2.0
	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ilhamster/platecoloring/config"
	"github.com/ilhamster/platecoloring/service"
)

// app holds state shared by every subcommand, populated before any of them
// runs.
type app struct {
	cfgFile string
	catalog string
	log     *zap.Logger
	svc     *service.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:   "coloring",
		Short: "Inspect and manage plate colorings",
		Long: `coloring lists the colorings registered for a shape model, reports their
default ranges, exports them as VTK files and manages custom colorings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(v)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	defaults := config.Defaults()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: ./platecoloring.yaml or ~/.config/platecoloring/platecoloring.yaml)")
	flags.StringVar(&a.catalog, "catalog", "",
		"registry document listing the built-in colorings")
	flags.String(config.DataRoot, defaults.DataRoot, "directory coloring file IDs are resolved against")
	flags.String(config.CustomDir, defaults.CustomDir, "directory holding the custom-coloring file")
	flags.Int(config.ResidentCapacity, defaults.ResidentCapacity, "maximum number of colorings kept loaded")
	flags.Int(config.PreloadParallelism, defaults.PreloadParallelism, "maximum number of colorings preloaded at once")
	flags.String(config.LogLevel, defaults.LogLevel, "log level (debug, info, warn, error)")
	for _, name := range []string{config.DataRoot, config.CustomDir, config.ResidentCapacity, config.PreloadParallelism, config.LogLevel} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		a.listCmd(),
		a.rangeCmd(),
		a.preloadCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.removeCmd(),
	)
	return rootCmd
}

func (a *app) init(v *viper.Viper) error {
	cfg, err := config.Load(v, a.cfgFile)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.log = log
	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Open(a.catalog); err != nil {
		return err
	}
	a.svc = svc
	return nil
}

// newLogger returns a logger writing to stderr at the provided level, with
// development formatting at debug level.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
