// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/introspect"
	"github.com/aibor/vmprobe/internal/machine"
	"github.com/aibor/vmprobe/internal/probe"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/report"
	"github.com/aibor/vmprobe/internal/sys"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
)

const longDescription = `vmprobe exercises a QEMU system emulator binary from the outside.

It discovers the user creatable object types the binary supports and probes
each of them by printing its help and by instantiating it with a monitor
attached. Crashes, unexpected exit codes and timeouts are reported as
defects. Halted machines are introspected via QMP and qtest to check machine
options against the actual device state.

Exit codes: 0 no defects, 1 defects found, 2 setup error, 130 interrupted.`

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type app struct {
	opts   *options
	io     IO
	runner qemu.Runner
}

func newRootCommand(cfg IO, runner qemu.Runner) *cobra.Command {
	app := &app{
		opts:   newOptions(),
		io:     cfg,
		runner: runner,
	}

	root := &cobra.Command{
		Use:           "vmprobe",
		Short:         "Probe QEMU system emulator binaries for crashes",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cfg.Stderr, app.opts.Debug, cmd.Name())
		},
	}

	if version, err := getVersion(); err == nil {
		root.Version = version
	}

	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	app.opts.addFlags(root.PersistentFlags())

	// The help probe takes the place of cobra's help command. Help for the
	// commands themselves is available via --help.
	root.SetHelpCommand(
		app.probeCmd("help", "Print the help of each object type", probe.HelpProbe),
	)

	root.AddCommand(
		app.typesCmd(),
		app.probeCmd("instantiate", "Instantiate each object type", probe.InstantiateProbe),
		app.introspectCmd(),
		app.validateCmd(),
		app.allCmd(),
	)

	return root
}

// TypesOptions defines flags for the types subcommand.
type TypesOptions struct {
	Count bool `flag:"count" flagshort:"c" flagdescr:"Print only the number of types"`
}

func (o *TypesOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (a *app) typesCmd() *cobra.Command {
	opts := &TypesOptions{}

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the object types of the binary",
		Args:  cobra.NoArgs,
		PreRunE: func(c *cobra.Command, _ []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := a.opts.config()
			if err != nil {
				return err
			}

			names, err := a.prober(cfg).Discover(c.Context())
			if err != nil {
				return err
			}

			if opts.Count {
				_, err = fmt.Fprintln(a.io.Stdout, len(names))
				return err
			}

			for _, name := range names {
				_, err = fmt.Fprintln(a.io.Stdout, name)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}

	return cmd
}

func (a *app) probeCmd(name, short string, p probe.Probe) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.execute(c.Context(), func(ctx context.Context, cfg Config, rep *report.Report) error {
				prober := a.prober(cfg)

				names, err := prober.Discover(ctx)
				if err != nil {
					return err
				}

				return prober.Run(ctx, p, names, rep)
			})
		},
	}
}

func (a *app) introspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "introspect",
		Short: "Check machine options against the device state",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.execute(c.Context(), a.introspect)
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the option validation checks",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.execute(c.Context(), func(ctx context.Context, cfg Config, rep *report.Report) error {
				return a.prober(cfg).Validate(ctx, cfg.Validate.Checks, rep)
			})
		},
	}
}

func (a *app) allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run all probes",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.execute(c.Context(), func(ctx context.Context, cfg Config, rep *report.Report) error {
				prober := a.prober(cfg)

				names, err := prober.Discover(ctx)
				if err != nil {
					return err
				}

				for _, p := range []probe.Probe{probe.HelpProbe, probe.InstantiateProbe} {
					err = prober.Run(ctx, p, names, rep)
					if err != nil {
						return err
					}
				}

				err = prober.Validate(ctx, cfg.Validate.Checks, rep)
				if err != nil {
					return err
				}

				return a.introspect(ctx, cfg, rep)
			})
		},
	}
}

type phase func(ctx context.Context, cfg Config, rep *report.Report) error

// execute runs the phase and writes the report. Defects result in an
// [exitcode.DefectError].
func (a *app) execute(ctx context.Context, run phase) error {
	cfg, err := a.opts.config()
	if err != nil {
		return err
	}

	var rep report.Report

	err = run(ctx, cfg, &rep)
	if err != nil {
		return err
	}

	err = a.opts.writeReport(&rep, a.io.Stdout)
	if err != nil {
		return err
	}

	if rep.Failed() {
		return &exitcode.DefectError{Count: len(rep.Defects())}
	}

	return nil
}

func (a *app) progress() probe.Progress {
	file, _ := a.io.Stderr.(*os.File)
	return newProgress(a.opts.Progress, file)
}

func (a *app) prober(cfg Config) *probe.Prober {
	return &probe.Prober{
		Runner:     a.runner,
		Executable: cfg.Executable,
		ExtraArgs:  cfg.ExtraArgs,
		Option:     cfg.ObjectOption,
		Timeout:    cfg.Timeout.Duration(),
		Progress:   a.progress(),
	}
}

func (a *app) introspect(ctx context.Context, cfg Config, rep *report.Report) error {
	feature := introspect.HPET()
	if cfg.Introspect.Feature != nil {
		feature = *cfg.Introspect.Feature
	}

	if feature.TypeName == introspect.HPET().TypeName && a.opts.Arch != sys.AMD64 {
		rep.Skip(report.Skip{
			Probe:   introspect.ProbeName,
			Subject: feature.Name,
			Reason:  "only available on " + string(sys.AMD64),
		})

		return nil
	}

	machineType := cfg.Introspect.Machine
	if machineType == "" {
		var err error

		machineType, err = a.opts.Arch.Machine()
		if err != nil {
			return err
		}
	}

	slog.Debug("Introspecting",
		slog.String("feature", feature.Name),
		slog.String("machine", machineType))

	prober := introspect.Prober{
		Launcher: introspect.MachineLauncher{
			Launcher: &machine.Launcher{
				Executable: cfg.Executable,
				Machine:    machineType,
				ExtraArgs:  cfg.ExtraArgs,
				Timeout:    cfg.Timeout.Duration(),
			},
		},
		Feature:      feature,
		QueryTimeout: cfg.Timeout.Duration(),
		Progress:     a.progress(),
	}

	return prober.Run(ctx, cfg.Introspect.Scenarios, rep)
}
