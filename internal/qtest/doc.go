// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qtest implements a client for the line based qtest protocol of
// QEMU's qtest accelerator.
package qtest
