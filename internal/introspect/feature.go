// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package introspect

import (
	"fmt"
	"strings"
)

// Feature is an optional machine device that can be introspected.
type Feature struct {
	// Name used in messages.
	Name string `yaml:"name"`
	// QOM type name the device implements.
	TypeName string `yaml:"typeName"`
	// QOM path of the object that has the enabling property.
	MachinePath string `yaml:"machinePath"`
	// Boolean property that enables the device.
	Property string `yaml:"property"`
	// Physical address of a register that reads non-zero if the device is
	// present.
	Address uint64 `yaml:"address"`
}

// HPETAddress is the base address of the HPET on x86 PCs.
const HPETAddress = 0xfed00000

// HPET returns the [Feature] of the x86 High Precision Event Timer.
func HPET() Feature {
	return Feature{
		Name:        "HPET",
		TypeName:    "hpet",
		MachinePath: "/machine",
		Property:    "hpet",
		Address:     HPETAddress,
	}
}

// Expect is the expected presence of a [Feature] in a [Scenario].
type Expect int

const (
	// Default expects the feature to be present if and only if its type is
	// registered.
	Default Expect = iota
	// Present expects the feature to be present. The scenario is skipped if
	// the type is not registered.
	Present
	// Absent expects the feature to be absent.
	Absent
)

var expectNames = map[Expect]string{
	Default: "default",
	Present: "present",
	Absent:  "absent",
}

func (e Expect) String() string {
	if name, exists := expectNames[e]; exists {
		return name
	}

	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (e Expect) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (e *Expect) UnmarshalText(text []byte) error {
	for expect, name := range expectNames {
		if strings.EqualFold(string(text), name) {
			*e = expect
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownExpect, text)
}

// Scenario is a machine configuration with an expectation on the presence
// of a [Feature].
type Scenario struct {
	Name   string   `yaml:"name"`
	Args   []string `yaml:"args"`
	Expect Expect   `yaml:"expect"`
}

// HPETScenarios returns the scenarios for the HPET machine options.
func HPETScenarios() []Scenario {
	return []Scenario{
		{Name: "default", Expect: Default},
		{Name: "no-flag", Args: []string{"-no-hpet"}, Expect: Absent},
		{Name: "machine-off", Args: []string{"-machine", "hpet=off"}, Expect: Absent},
		{Name: "machine-on", Args: []string{"-machine", "hpet=on"}, Expect: Present},
	}
}

// Answer is what a machine reports about a [Feature].
type Answer struct {
	// The device type is available in the binary.
	Registered bool `yaml:"registered"`
	// The machine property enabling the device is set.
	Enabled bool `yaml:"enabled"`
	// The device register reads non-zero.
	Active bool `yaml:"active"`
}
