// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aibor/vmprobe/internal/exitcode"
)

// ParseTypeList parses the output lines of a type listing into type names.
//
// The first line is dropped if it is a header, which is a line ending with a
// colon. Lines are trimmed and blank lines skipped. Order and duplicates are
// preserved.
func ParseTypeList(lines []string) []string {
	if len(lines) > 0 && strings.HasSuffix(strings.TrimSpace(lines[0]), ":") {
		lines = lines[1:]
	}

	names := make([]string, 0, len(lines))

	for _, line := range lines {
		name := strings.TrimSpace(line)
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

// Discover returns the type names the binary lists for the configured
// option, in the binary's listing order.
//
// Any failure is returned as [DiscoveryError], since probing is not possible
// without the type list.
func (p *Prober) Discover(ctx context.Context) ([]string, error) {
	inv := p.invocation(p.optionFlag(), "help")
	inv.CaptureStdout = true

	result, err := p.Runner.Run(ctx, inv)
	if err != nil {
		return nil, &DiscoveryError{Err: err}
	}

	if result.Verdict() != exitcode.Clean {
		return nil, &DiscoveryError{
			Status: &result.Status,
			Stderr: result.Stderr,
		}
	}

	names := ParseTypeList(result.StdoutLines())
	if len(names) == 0 {
		return nil, &DiscoveryError{Err: ErrNoTypes}
	}

	slog.Debug("Discovered types",
		slog.String("option", p.option()),
		slog.Int("count", len(names)))

	return names, nil
}
