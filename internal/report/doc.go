// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package report collects the outcome of probe runs. Probes never stop at the
// first failure. Every defect and every skip is recorded, so a single run
// yields the complete list.
package report
