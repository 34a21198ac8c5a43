// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package exitcode decodes how an emulator process terminated and classifies
// it. The policy is fixed: exit code 0 is a clean exit, exit code 1 is a
// controlled refusal, any other exit code is an anomaly and termination by
// signal is a crash. A process killed because it ran out of time is neither
// of those and is classified as timeout.
package exitcode
