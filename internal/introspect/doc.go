// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package introspect checks how machine options affect an optional device.
//
// For each [Scenario], a halted machine is launched and asked via QMP
// whether the device type is registered and whether the machine property
// enables it. The answer is cross-checked against a register read of the
// device's MMIO region via qtest.
package introspect
