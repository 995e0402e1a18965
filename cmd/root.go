// Copyright 2026 The Blockfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements blockfs's command-line surface: format,
// fsck and an interactive shell, all sharing one cfg.Config bound
// through viper/pflag the way the teacher's CLI binds its mount
// flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockfs/blockfs/cfg"
	"github.com/blockfs/blockfs/internal/logger"
)

var (
	cfgFile      string
	bindErr      error
	MountConfig  cfg.Config
)

// RootCmd is the blockfs CLI's entry point.
var RootCmd = &cobra.Command{
	Use:   "blockfs",
	Short: "A Unix-like filesystem over a fixed-size block device image",
	Long: `blockfs implements a buffer cache, an extensible inode layer and
a hierarchical directory namespace over a flat device image file,
exposed through format, fsck and an interactive shell.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		return initLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none)")
	RootCmd.PersistentFlags().String("device", cfg.Default().Device, "path to the block device image")
	RootCmd.PersistentFlags().Uint32("sector-count", cfg.Default().SectorCount, "sectors to allocate when formatting")
	RootCmd.PersistentFlags().Int("cache-capacity", cfg.Default().CacheCapacity, "resident buffer cache entries")
	RootCmd.PersistentFlags().Int("write-back-interval-ms", cfg.Default().WriteBackIntervalMs, "background flush interval in milliseconds")
	RootCmd.PersistentFlags().String("logging.format", cfg.Default().Logging.Format, "log format: text or json")
	RootCmd.PersistentFlags().String("logging.severity", cfg.Default().Logging.Severity, "log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	RootCmd.PersistentFlags().String("logging.file-path", "", "log file path (default: stderr)")
	RootCmd.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (default: disabled)")

	bindErr = viper.BindPFlags(RootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			bindErr = err
			return
		}
	}
	viper.SetEnvPrefix("BLOCKFS")
	viper.AutomaticEnv()

	MountConfig = cfg.Default()
	if err := viper.Unmarshal(&MountConfig); err != nil {
		bindErr = err
	}
}

func initLogging() error {
	return logger.Init(logger.Config{
		FilePath: MountConfig.Logging.FilePath,
		Format:   MountConfig.Logging.Format,
		Severity: MountConfig.Logging.Severity,
		Rotate:   logger.DefaultRotateConfig(),
	})
}

// Execute runs the CLI, exiting the process with status 1 on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
