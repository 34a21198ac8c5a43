// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aibor/vmprobe/internal/report"
	"github.com/aibor/vmprobe/internal/sys"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
)

// ReportFormat is the output format of the final report.
type ReportFormat enumflag.Flag

// Report formats.
const (
	FormatText ReportFormat = iota
	FormatYAML
)

//nolint:gochecknoglobals
var reportFormatIDs = map[ReportFormat][]string{
	FormatText: {"text"},
	FormatYAML: {"yaml"},
}

// options are the flags shared by all subcommands.
type options struct {
	QemuBin    string
	Arch       sys.Arch
	ConfigFile string
	Timeout    time.Duration
	Format     ReportFormat
	Output     string
	Progress   bool
	Debug      bool
}

func newOptions() *options {
	return &options{
		Arch:     sys.Native,
		Progress: true,
	}
}

func (o *options) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.QemuBin, "qemu-bin", "",
		"QEMU system emulator `binary` (default by --arch)")
	flagSet.Var(&o.Arch, "arch",
		"target architecture: amd64, arm64, riscv64 (default host arch)")
	flagSet.StringVar(&o.ConfigFile, "config", "",
		"YAML configuration `file`")
	flagSet.DurationVar(&o.Timeout, "timeout", 0,
		"time limit for each QEMU invocation (default 30s or from config)")
	flagSet.Var(
		enumflag.New(&o.Format, "format", reportFormatIDs, enumflag.EnumCaseInsensitive),
		"report",
		"report format: text, yaml",
	)
	flagSet.StringVarP(&o.Output, "output", "o", "",
		"write the report to `file` instead of stdout")
	flagSet.BoolVar(&o.Progress, "progress", o.Progress,
		"show progress bars on terminals")
	flagSet.BoolVar(&o.Debug, "debug", o.Debug,
		"enable debug output")
}

// config loads the configuration file and applies the flags on top.
func (o *options) config() (Config, error) {
	cfg, err := LoadConfig(o.ConfigFile)
	if err != nil {
		return cfg, err
	}

	if o.QemuBin != "" {
		cfg.Executable = o.QemuBin
	}

	if cfg.Executable == "" {
		cfg.Executable, err = o.Arch.Executable()
		if err != nil {
			return cfg, err
		}
	}

	if o.Timeout > 0 {
		cfg.Timeout = Duration(o.Timeout)
	}

	return cfg, nil
}

func (o *options) writeReport(rep *report.Report, stdout io.Writer) (err error) {
	writer := stdout

	if o.Output != "" {
		file, createErr := os.Create(o.Output)
		if createErr != nil {
			return fmt.Errorf("create report file: %w", createErr)
		}

		defer func() {
			closeErr := file.Close()
			if err == nil && closeErr != nil {
				err = fmt.Errorf("close report file: %w", closeErr)
			}
		}()

		writer = file
	}

	switch o.Format {
	case FormatYAML:
		return rep.WriteYAML(writer)
	case FormatText:
		return rep.WriteText(writer)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, o.Format)
	}
}
