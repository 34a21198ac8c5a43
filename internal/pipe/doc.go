// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipe provides processing of the output streams of emulator
// processes. Output is decoded as text with universal newline handling, so
// callers can inspect it line by line regardless of the line endings the
// process used.
package pipe
