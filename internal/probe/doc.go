// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package probe exercises the pluggable component types of a QEMU binary.
//
// [Prober.Discover] asks the binary for the list of user creatable object
// types. [Prober.Run] then applies a [Probe] to each of the discovered type
// names, one clean-room subprocess per name, strictly sequential. A defect
// found for one type never stops the probing of the remaining ones.
//
// Two probes are provided: [HelpProbe] checks that printing a type's option
// help exits cleanly. [InstantiateProbe] creates a single instance of a type
// with a monitor attached on stdio, quits it and accepts both a clean exit and
// a controlled refusal, while a crash or any other exit code is a defect.
package probe
