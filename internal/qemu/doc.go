// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu provides the mechanical execution of QEMU system emulator
// processes. It expects the required QEMU binary to be present on the system.
//
// An [Invocation] is run to completion by a [Runner] and results in a
// [Result] holding the captured output and the [exitcode.Status]. Abnormal
// termination is not an error from this package's point of view. It is data
// returned to the caller for classification. Only failures to run the process
// at all are returned as errors.
package qemu
