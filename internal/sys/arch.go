// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"fmt"
	"runtime"
)

// Arch is a QEMU system emulator target architecture in GOARCH notation.
type Arch string

// Supported target architectures.
const (
	AMD64   Arch = "amd64"
	ARM64   Arch = "arm64"
	RISCV64 Arch = "riscv64"
)

// Native is the architecture of the host.
const Native Arch = Arch(runtime.GOARCH)

type archInfo struct {
	executable string
	machine    string
}

var archInfos = map[Arch]archInfo{
	AMD64:   {executable: "qemu-system-x86_64", machine: "pc"},
	ARM64:   {executable: "qemu-system-aarch64", machine: "virt"},
	RISCV64: {executable: "qemu-system-riscv64", machine: "virt"},
}

func (a *Arch) String() string {
	return string(*a)
}

// Set implements [flag.Value].
func (a *Arch) Set(s string) error {
	if _, exists := archInfos[Arch(s)]; !exists {
		return fmt.Errorf("%w: %s", ErrArchNotSupported, s)
	}

	*a = Arch(s)

	return nil
}

// Type implements [github.com/spf13/pflag.Value].
func (*Arch) Type() string {
	return "arch"
}

// Executable returns the name of the QEMU system emulator binary for the
// architecture.
func (a *Arch) Executable() (string, error) {
	info, exists := archInfos[*a]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrArchNotSupported, *a)
	}

	return info.executable, nil
}

// Machine returns the default machine type of the architecture.
func (a *Arch) Machine() (string, error) {
	info, exists := archInfos[*a]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrArchNotSupported, *a)
	}

	return info.machine, nil
}
