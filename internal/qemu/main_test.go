// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"testing"

	"github.com/aibor/vmprobe/internal/fakeqemu"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	fakeqemu.Main()
	goleak.VerifyTestMain(m)
}
