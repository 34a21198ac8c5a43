// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/qemu"
)

func getVersion() (string, error) {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ErrReadBuildInfo
	}

	return buildInfo.Main.Version, nil
}

func handleRunError(err error) int {
	code, reported := exitcode.ForRun(err)
	if !reported {
		if errors.Is(err, qemu.ErrExecutableNotFound) {
			slog.Error("QEMU binary not found, set --qemu-bin or --arch")
		}

		slog.Error(err.Error())
	}

	return code
}

// Run is the main entry point for the CLI command. It returns the exit code.
func Run(ctx context.Context, args []string, cfg IO) int {
	return run(ctx, args, cfg, &qemu.ExecRunner{})
}

func run(ctx context.Context, args []string, cfg IO, runner qemu.Runner) int {
	setupLogging(cfg.Stderr, false, "")

	args, err := MergedArgs(args, os.DirFS("."), localConfigFile)
	if err != nil {
		return handleRunError(err)
	}

	root := newRootCommand(cfg, runner)
	root.SetArgs(args)

	return handleRunError(root.ExecuteContext(ctx))
}
