// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRunError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedExitCode int
		expectedOutput   string
	}{
		{
			name: "no error",
		},
		{
			name:             "defects found",
			err:              &exitcode.DefectError{Count: 1},
			expectedExitCode: 1,
		},
		{
			name:             "interrupted",
			err:              context.Canceled,
			expectedExitCode: 130,
			expectedOutput:   "context canceled",
		},
		{
			name:             "executable not found",
			err:              &qemu.CommandError{Executable: "qemu", Err: qemu.ErrExecutableNotFound},
			expectedExitCode: 2,
			expectedOutput:   "QEMU binary not found",
		},
		{
			name:             "other error",
			err:              assert.AnError,
			expectedExitCode: 2,
			expectedOutput:   "assert.AnError general error for testing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer

			setupLogging(&stderr, false, "")

			assert.Equal(t, tt.expectedExitCode, handleRunError(tt.err))

			if tt.expectedOutput == "" {
				assert.Empty(t, stderr.String())
			} else {
				assert.Contains(t, stderr.String(), tt.expectedOutput)
			}
		})
	}
}

func TestOptions_WriteReport(t *testing.T) {
	var rep report.Report

	rep.Pass("help", "a")

	t.Run("text", func(t *testing.T) {
		var stdout bytes.Buffer

		opts := &options{Format: FormatText}
		require.NoError(t, opts.writeReport(&rep, &stdout))
		assert.Equal(t, "1 checked, 0 defects, 0 skipped\n", stdout.String())
	})

	t.Run("yaml file", func(t *testing.T) {
		var stdout bytes.Buffer

		opts := &options{
			Format: FormatYAML,
			Output: filepath.Join(t.TempDir(), "report.yaml"),
		}
		require.NoError(t, opts.writeReport(&rep, &stdout))
		assert.Empty(t, stdout.String())

		data, err := os.ReadFile(opts.Output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "checked: 1")
	})

	t.Run("unknown format", func(t *testing.T) {
		opts := &options{Format: ReportFormat(42)}
		require.ErrorIs(t, opts.writeReport(&rep, &bytes.Buffer{}), ErrUnknownFormat)
	})
}

func TestOptions_Config(t *testing.T) {
	opts := newOptions()
	opts.Arch = "riscv64"

	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, "qemu-system-riscv64", cfg.Executable)
	assert.Equal(t, DefaultTimeout, cfg.Timeout.Duration())

	opts.QemuBin = "/opt/qemu"
	opts.Timeout = 42

	cfg, err = opts.config()
	require.NoError(t, err)
	assert.Equal(t, "/opt/qemu", cfg.Executable)
	assert.Equal(t, Duration(42), cfg.Timeout)
}

func TestNewProgress(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	defer file.Close()

	assert.Nil(t, newProgress(true, file))
	assert.Nil(t, newProgress(false, file))
	assert.Nil(t, newProgress(true, nil))
}
