// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package machine launches halted QEMU machines under the qtest accelerator
// and connects to their QMP and qtest channels.
//
// A launched [Machine] never executes guest code. It exists only to be
// queried and is released by [Machine.Close].
package machine
