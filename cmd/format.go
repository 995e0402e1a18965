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

package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/clock"
	"github.com/blockfs/blockfs/internal/logger"
	"github.com/blockfs/blockfs/mount"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create a fresh filesystem on the configured device image",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := device.OpenFileDevice(MountConfig.Device, device.Sector(MountConfig.SectorCount))
		if err != nil {
			return errors.Wrap(err, "opening device image")
		}

		m, err := mount.Format(dev, clock.RealClock{}, MountConfig.CacheCapacity)
		if err != nil {
			return errors.Wrap(err, "formatting filesystem")
		}
		logger.Infof("formatted %s: %d sectors, %d free after root directory", MountConfig.Device, MountConfig.SectorCount, m.FreeSectors())
		return m.Done()
	},
}

func init() {
	RootCmd.AddCommand(formatCmd)
}
