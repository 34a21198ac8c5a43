// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"io"
	"log/slog"
)

// setupLogging installs the default logger for a run. Records carry the
// name of the running command, if any, and no timestamps.
func setupLogging(writer io.Writer, debug bool, command string) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: dropTime,
		},
	))

	if command != "" {
		logger = logger.With(slog.String("command", command))
	}

	slog.SetDefault(logger)
}

func dropTime(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 && attr.Key == slog.TimeKey {
		return slog.Attr{}
	}

	return attr
}
