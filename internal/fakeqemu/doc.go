// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fakeqemu provides a fake QEMU system emulator for tests.
//
// Test binaries call [Main] first thing in their TestMain. If the process has
// been started by [Executable], [Main] takes over and behaves like a small
// subset of QEMU: listing user creatable objects, printing object help,
// instantiating objects with a monitor on stdio, memory backend host-nodes
// validation, and a halted qtest machine with QMP and qtest sockets.
//
// The behavior of the listed object types is encoded in their names:
//
//	crash-*   killed by SIGKILL on instantiation
//	abort-*   killed by SIGKILL when printing help
//	exit3-*   exits with code 3 on instantiation
//	refuse-*  exits with code 1 on instantiation
//	hang-*    never terminates on instantiation
//
// All other types instantiate and quit cleanly.
package fakeqemu
