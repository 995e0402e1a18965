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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/clock"
	"github.com/blockfs/blockfs/mount"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive shell against the configured device image",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := device.OpenFileDevice(MountConfig.Device, device.Sector(MountConfig.SectorCount))
		if err != nil {
			return errors.Wrap(err, "opening device image")
		}

		m, err := mount.Open(dev, clock.RealClock{})
		if err != nil {
			return errors.Wrap(err, "mounting filesystem")
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		m.StartBackgroundTasks(ctx)
		defer m.Done()
		maybeServeMetrics()

		session, err := m.NewSession()
		if err != nil {
			return errors.Wrap(err, "opening root directory")
		}
		defer session.Close()

		return runShell(m, session, os.Stdin, os.Stdout)
	},
}

func init() {
	RootCmd.AddCommand(shellCmd)
}

func runShell(m *mount.Mount, session *mount.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if err := runShellCommand(m, session, line, out); err != nil {
				if err == errShellExit {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

var errShellExit = errors.New("exit")

func runShellCommand(m *mount.Mount, session *mount.Session, line string, out io.Writer) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit":
		return errShellExit

	case "pwd":
		fmt.Fprintf(out, "inode sector %d\n", mustStat(m, session))
		return nil

	case "mkdir":
		if len(args) != 1 {
			return errors.New("usage: mkdir <path>")
		}
		return m.Mkdir(session, args[0])

	case "touch":
		if len(args) != 1 {
			return errors.New("usage: touch <path>")
		}
		fd, err := m.Create(session, args[0], 0)
		if err != nil {
			return err
		}
		return m.Close(session, fd)

	case "create":
		if len(args) != 2 {
			return errors.New("usage: create <path> <size>")
		}
		size, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "parsing size")
		}
		fd, err := m.Create(session, args[0], size)
		if err != nil {
			return err
		}
		return m.Close(session, fd)

	case "cd":
		if len(args) != 1 {
			return errors.New("usage: cd <path>")
		}
		return m.Chdir(session, args[0])

	case "ls":
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		return lsShell(m, session, path, out)

	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <path>")
		}
		return m.Remove(session, args[0])

	case "write":
		if len(args) < 2 {
			return errors.New("usage: write <path> <text...>")
		}
		return writeShell(m, session, args[0], strings.Join(args[1:], " "))

	case "cat":
		if len(args) != 1 {
			return errors.New("usage: cat <path>")
		}
		return catShell(m, session, args[0], out)

	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func mustStat(m *mount.Mount, session *mount.Session) int {
	fd, err := m.OpenDir(session, ".")
	if err != nil {
		return -1
	}
	defer m.Close(session, fd)
	sector, err := m.Inumber(session, fd)
	if err != nil {
		return -1
	}
	return int(sector)
}

func lsShell(m *mount.Mount, session *mount.Session, path string, out io.Writer) error {
	fd, err := m.OpenDir(session, path)
	if err != nil {
		return err
	}
	defer m.Close(session, fd)

	for {
		name, sector, ok, err := m.Readdir(session, fd)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintf(out, "%-14s %d\n", name, sector)
	}
}

func writeShell(m *mount.Mount, session *mount.Session, path, text string) error {
	fd, err := m.OpenFile(session, path)
	if err != nil {
		return err
	}
	defer m.Close(session, fd)
	_, err = m.WriteAt(session, fd, []byte(text), 0)
	return err
}

func catShell(m *mount.Mount, session *mount.Session, path string, out io.Writer) error {
	fd, err := m.OpenFile(session, path)
	if err != nil {
		return err
	}
	defer m.Close(session, fd)

	length, err := m.Length(session, fd)
	if err != nil {
		return err
	}
	buf := make([]byte, length)
	n, err := m.ReadAt(session, fd, buf, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(buf[:n]))
	return nil
}

