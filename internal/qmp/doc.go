// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qmp implements a minimal client for the QEMU Machine Protocol.
//
// It covers the greeting and capabilities negotiation and synchronous
// command execution. Asynchronous events are read and dropped.
package qmp
