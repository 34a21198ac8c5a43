// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"strings"
)

// Arg is a single emulator option with or without value.
type Arg struct {
	Name  string
	Value string

	// Exclusive options may appear only once in an argument list, regardless
	// of their value. Non-exclusive options may be repeated with different
	// values, like -object or -machine, whose values QEMU merges.
	Exclusive bool
}

// Flag returns an exclusive [Arg] without value.
func Flag(name string) Arg {
	return Arg{Name: name, Exclusive: true}
}

// Option returns an exclusive [Arg] whose value parts are joined by
// [OptionValue].
func Option(name string, parts ...string) Arg {
	return Arg{Name: name, Value: OptionValue(parts...), Exclusive: true}
}

// Repeatable returns a non-exclusive [Arg] whose value parts are joined by
// [OptionValue].
func Repeatable(name string, parts ...string) Arg {
	return Arg{Name: name, Value: OptionValue(parts...)}
}

// String returns the argument as it would be typed on a shell.
func (a Arg) String() string {
	if a.Value == "" {
		return "-" + a.Name
	}

	return "-" + a.Name + " " + a.Value
}

// Collides reports whether both args can not be used in the same list.
func (a Arg) Collides(other Arg) bool {
	if a.Name != other.Name {
		return false
	}

	if a.Exclusive || other.Exclusive {
		return true
	}

	return a.Value == other.Value
}

// OptionValue joins the given parts into a single QEMU option value.
//
// Parts are separated by commas. Commas within a part are escaped by
// doubling them, which is how QEMU's option parser expects literal commas.
// So any part, e.g. a type name read from QEMU's own output, stays a single
// opaque value and can not inject additional options.
func OptionValue(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, strings.ReplaceAll(part, ",", ",,"))
	}

	return strings.Join(escaped, ",")
}

// Args is an ordered emulator argument list.
type Args []Arg

// ParseArgs reads raw command line tokens into non-exclusive [Arg]s.
//
// A token with a leading dash starts a new arg. A following token without
// leading dash is its value. A double dash prefix is treated like a single
// one, as QEMU accepts both.
func ParseArgs(tokens []string) (Args, error) {
	args := make(Args, 0, len(tokens))

	for _, token := range tokens {
		name, isOption := strings.CutPrefix(token, "-")
		if isOption {
			name = strings.TrimPrefix(name, "-")
			if name == "" {
				return nil, fmt.Errorf("%w: option name in %q", ErrEmptyValue, token)
			}

			args = append(args, Arg{Name: name})

			continue
		}

		last := len(args) - 1
		if last < 0 || args[last].Value != "" {
			return nil, fmt.Errorf("%w: %q", ErrStrayValue, token)
		}

		args[last].Value = token
	}

	return args, nil
}

// Strings compiles the list into tokens that can be used with
// [exec.Command].
//
// It returns an error wrapping [ErrArgumentCollision] if any two args
// collide.
func (a Args) Strings() ([]string, error) {
	tokens := make([]string, 0, 2*len(a))

	for idx, arg := range a {
		for _, earlier := range a[:idx] {
			if arg.Collides(earlier) {
				return nil, fmt.Errorf(
					"%w: %s, %s",
					ErrArgumentCollision,
					earlier,
					arg,
				)
			}
		}

		tokens = append(tokens, "-"+arg.Name)

		if arg.Value != "" {
			tokens = append(tokens, arg.Value)
		}
	}

	return tokens, nil
}
