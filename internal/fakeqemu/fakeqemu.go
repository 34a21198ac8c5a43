// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fakeqemu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

const (
	envActive = "FAKEQEMU"
	envTypes  = "FAKEQEMU_TYPES"
	envHPET   = "FAKEQEMU_HPET"
	envList   = "FAKEQEMU_LIST"
)

// ListHeader is the header line printed before the object type list.
const ListHeader = "List of user creatable objects:"

// HPET states of the fake machine.
const (
	// HPETPresent has the hpet type compiled in. It is enabled by default.
	HPETPresent = "present"
	// HPETAbsent lacks the hpet type.
	HPETAbsent = "absent"
	// HPETInconsistent reports the hpet property enabled, but the device
	// does not respond.
	HPETInconsistent = "inconsistent"
)

// Behavior configures the fake emulator.
type Behavior struct {
	// Object type names listed by "-object help".
	Types []string
	// One of the HPET* constants. Defaults to [HPETPresent].
	HPET string
	// Exit code of "-object help". Non-zero codes print nothing.
	ListExitCode int
}

// Executable prepares the environment for the fake emulator with the given
// [Behavior] and returns the path of the executable to run.
func Executable(tb testing.TB, behavior Behavior) string {
	tb.Helper()

	self, err := os.Executable()
	if err != nil {
		tb.Fatalf("get test executable: %v", err)
	}

	hpet := behavior.HPET
	if hpet == "" {
		hpet = HPETPresent
	}

	tb.Setenv(envActive, "1")
	tb.Setenv(envTypes, strings.Join(behavior.Types, "\n"))
	tb.Setenv(envHPET, hpet)
	tb.Setenv(envList, strconv.Itoa(behavior.ListExitCode))

	return self
}

// Main runs the fake emulator and exits, if the process is supposed to be
// one. Otherwise it returns immediately.
func Main() {
	if os.Getenv(envActive) != "1" {
		return
	}

	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	objects  []string
	machine  []string
	qtest    string
	chardevs []string
	monitor  string
	noHPET   bool
}

func parseOptions(args []string) (options, error) {
	var opts options

	for idx := 0; idx < len(args); idx++ {
		name := args[idx]

		var value string

		switch name {
		case "-S", "-no-hpet", "-nodefaults", "-no-user-config":
			if name == "-no-hpet" {
				opts.noHPET = true
			}

			continue
		}

		if idx+1 >= len(args) {
			return opts, fmt.Errorf("option %s requires an argument", name)
		}

		idx++
		value = args[idx]

		switch name {
		case "-object":
			opts.objects = append(opts.objects, value)
		case "-machine":
			opts.machine = append(opts.machine, value)
		case "-qtest":
			opts.qtest = value
		case "-chardev":
			opts.chardevs = append(opts.chardevs, value)
		case "-monitor":
			opts.monitor = value
		case "-display", "-accel", "-mon":
		default:
			return opts, fmt.Errorf("%s: invalid option", name)
		}
	}

	return opts, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintln(stderr, "qemu-system-fake: "+err.Error())
		return 1
	}

	switch {
	case len(opts.objects) == 1 && opts.objects[0] == "help":
		return listTypes(stdout)
	case len(opts.objects) == 1 && strings.HasSuffix(opts.objects[0], ",help"):
		return objectHelp(strings.TrimSuffix(opts.objects[0], ",help"), stdout)
	case len(opts.objects) == 1:
		return instantiate(opts, stdin, stderr)
	case opts.qtest != "":
		return runMachine(opts, stderr)
	default:
		fmt.Fprintln(stderr, "qemu-system-fake: nothing to do")
		return 1
	}
}

func listTypes(stdout io.Writer) int {
	code, _ := strconv.Atoi(os.Getenv(envList))
	if code != 0 {
		return code
	}

	fmt.Fprintln(stdout, ListHeader)

	for _, name := range strings.Split(os.Getenv(envTypes), "\n") {
		if name != "" {
			fmt.Fprintf(stdout, "  %s\r\n", name)
		}
	}

	return 0
}

func objectHelp(typeName string, stdout io.Writer) int {
	if strings.HasPrefix(typeName, "abort-") {
		kill()
	}

	fmt.Fprintf(stdout, "%s options:\n  id=<str>\n", typeName)

	return 0
}

func instantiate(opts options, stdin io.Reader, stderr io.Writer) int {
	object := opts.objects[0]

	if strings.HasPrefix(object, "memory-backend-ram,") {
		return validateMemoryBackend(object, stderr)
	}

	typeName, _, _ := strings.Cut(object, ",")

	switch {
	case strings.HasPrefix(typeName, "crash-"):
		fmt.Fprintln(stderr, "qemu-system-fake: assertion failed in "+typeName)
		kill()
	case strings.HasPrefix(typeName, "exit3-"):
		return 3
	case strings.HasPrefix(typeName, "refuse-"):
		fmt.Fprintf(stderr, "qemu-system-fake: -object %s: invalid object\n",
			object)

		return 1
	case strings.HasPrefix(typeName, "hang-"):
		for {
			time.Sleep(time.Hour)
		}
	}

	if opts.monitor != "stdio" {
		return 0
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "quit" {
			return 0
		}
	}

	return 0
}

func validateMemoryBackend(object string, stderr io.Writer) int {
	const maxNodes = 128

	for _, opt := range strings.Split(object, ",") {
		value, found := strings.CutPrefix(opt, "host-nodes=")
		if !found {
			continue
		}

		nodes, err := strconv.Atoi(value)
		if err != nil || nodes >= maxNodes {
			fmt.Fprintln(stderr, "qemu-system-fake: Invalid host-nodes value in memory backend")
			return 1
		}

		fmt.Fprintln(stderr, "qemu-system-fake: host-nodes must be empty for policy default")

		return 1
	}

	return 0
}

func kill() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGKILL)

	for {
		time.Sleep(time.Hour)
	}
}
