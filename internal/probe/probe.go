// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"slices"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/qemu"
)

// ObjectID is the identifier assigned to instantiated objects.
const ObjectID = "obj0"

// QuitCommand is the monitor command that makes QEMU terminate gracefully.
const QuitCommand = "quit"

// Probe is a single check that is applied to a type name.
type Probe struct {
	// Name of the probe used in reports.
	Name string

	// Action describes what is done with the type, used in defect messages
	// like "crashed while <action> <type>".
	Action string

	// Args returns the arguments for probing the given type with the given
	// option name, e.g. "object".
	Args func(option, typeName string) []string

	// Input for the process' stdin.
	Stdin string

	// Accepted verdicts. Any other verdict is a defect.
	Accepted []exitcode.Verdict
}

// Accepts returns true if the given [exitcode.Verdict] is not a defect.
func (p *Probe) Accepts(verdict exitcode.Verdict) bool {
	return slices.Contains(p.Accepted, verdict)
}

// HelpProbe prints the option help of a type. It must exit cleanly.
//
// The type name is not passed verbatim: commas in it are doubled by
// [qemu.OptionValue], so QEMU reads the name as one value instead of
// splitting it into further options.
//
//nolint:gochecknoglobals
var HelpProbe = Probe{
	Name:   "help",
	Action: "printing help for",
	Args: func(option, typeName string) []string {
		return []string{"-" + option, qemu.OptionValue(typeName, "help")}
	},
	Accepted: []exitcode.Verdict{exitcode.Clean},
}

// InstantiateProbe creates a single instance of a type with the monitor
// attached to stdio and quits via the monitor.
//
// Not every type is usable as standalone object, so a controlled refusal is
// accepted as well as a clean exit. Only a crash or any other exit code is a
// defect.
//
// Commas in the type name are doubled like for [HelpProbe].
//
//nolint:gochecknoglobals
var InstantiateProbe = Probe{
	Name:   "instantiate",
	Action: "instantiating",
	Args: func(option, typeName string) []string {
		return []string{
			"-" + option, qemu.OptionValue(typeName, "id="+ObjectID),
			"-monitor", "stdio",
		}
	},
	Stdin:    QuitCommand + "\n",
	Accepted: []exitcode.Verdict{exitcode.Clean, exitcode.Refusal},
}
