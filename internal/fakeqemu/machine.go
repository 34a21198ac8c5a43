// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fakeqemu

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// HPETAddress is the MMIO address the fake machine maps the HPET to.
const HPETAddress = 0xfed00000

// HPETCapabilities is the value the fake HPET returns for its first register.
const HPETCapabilities = 0x8086a201

type machineState struct {
	registered bool
	enabled    bool
	active     bool
}

func newMachineState(opts options) (machineState, error) {
	mode := os.Getenv(envHPET)

	state := machineState{registered: mode != HPETAbsent}
	state.enabled = state.registered

	for _, machineOpts := range opts.machine {
		for _, opt := range splitOptions(machineOpts) {
			switch opt {
			case "hpet=on":
				if !state.registered {
					return state, fmt.Errorf("-machine %s: hpet device not available", machineOpts)
				}

				state.enabled = true
			case "hpet=off":
				state.enabled = false
			}
		}
	}

	if opts.noHPET {
		state.enabled = false
	}

	state.active = state.enabled && mode != HPETInconsistent

	return state, nil
}

func runMachine(opts options, stderr io.Writer) int {
	state, err := newMachineState(opts)
	if err != nil {
		fmt.Fprintln(stderr, "qemu-system-fake: "+err.Error())
		return 1
	}

	qtestPath, found := strings.CutPrefix(opts.qtest, "unix:")
	if !found {
		fmt.Fprintln(stderr, "qemu-system-fake: qtest requires unix socket")
		return 1
	}

	monPath := ""

	for _, chardev := range opts.chardevs {
		for _, opt := range splitOptions(chardev) {
			if path, found := strings.CutPrefix(opt, "path="); found {
				monPath = path
			}
		}
	}

	qtestConn, err := net.Dial("unix", qtestPath)
	if err != nil {
		fmt.Fprintln(stderr, "qemu-system-fake: qtest: "+err.Error())
		return 1
	}
	defer qtestConn.Close()

	monConn, err := net.Dial("unix", monPath)
	if err != nil {
		fmt.Fprintln(stderr, "qemu-system-fake: monitor: "+err.Error())
		return 1
	}
	defer monConn.Close()

	go serveQtest(qtestConn, state)

	return serveQMP(monConn, state)
}

// splitOptions splits a QEMU option string at single commas. Doubled commas
// are literal commas.
func splitOptions(value string) []string {
	var (
		opts    []string
		current strings.Builder
	)

	for idx := 0; idx < len(value); idx++ {
		if value[idx] != ',' {
			current.WriteByte(value[idx])
			continue
		}

		if idx+1 < len(value) && value[idx+1] == ',' {
			current.WriteByte(',')
			idx++

			continue
		}

		opts = append(opts, current.String())
		current.Reset()
	}

	return append(opts, current.String())
}

func serveQtest(conn net.Conn, state machineState) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		var response string

		switch {
		case len(fields) == 2 && fields[0] == "readl":
			var addr uint64

			_, err := fmt.Sscanf(fields[1], "0x%x", &addr)

			switch {
			case err != nil:
				response = "FAIL invalid address"
			case addr == HPETAddress && state.active:
				response = fmt.Sprintf("OK 0x%016x", HPETCapabilities)
			default:
				response = fmt.Sprintf("OK 0x%016x", 0)
			}

			// Emulate an asynchronous notification that must be skipped.
			_, _ = fmt.Fprintln(conn, "IRQ raise 0")
		default:
			response = "FAIL Unknown command '" + strings.Join(fields, " ") + "'"
		}

		if _, err := fmt.Fprintln(conn, response); err != nil {
			return
		}
	}
}

type qmpRequest struct {
	Execute   string          `json:"execute"`
	Arguments json.RawMessage `json:"arguments"`
	ID        any             `json:"id,omitempty"`
}

type qmpError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

type qmpResponse struct {
	Return any       `json:"return,omitempty"`
	Error  *qmpError `json:"error,omitempty"`
	ID     any       `json:"id,omitempty"`
}

func serveQMP(conn net.Conn, state machineState) int {
	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	greeting := map[string]any{
		"QMP": map[string]any{
			"version": map[string]any{
				"qemu":    map[string]int{"major": 9, "minor": 2, "micro": 0},
				"package": "fake",
			},
			"capabilities": []string{"oob"},
		},
	}
	if err := encoder.Encode(greeting); err != nil {
		return 1
	}

	for {
		var req qmpRequest
		if err := decoder.Decode(&req); err != nil {
			// Monitor closed without quit: like QEMU, keep the machine
			// running until killed.
			for {
				time.Sleep(time.Hour)
			}
		}

		resp := qmpResponse{ID: req.ID, Return: map[string]any{}}

		switch req.Execute {
		case "qmp_capabilities":
		case "quit":
			_ = encoder.Encode(resp)
			_ = encoder.Encode(map[string]any{
				"event": "SHUTDOWN",
				"data":  map[string]any{"guest": false, "reason": "host-qmp-quit"},
			})

			return 0
		case "qom-list-types":
			resp.Return = listTypesResult(req.Arguments, state)
		case "qom-get":
			resp.Return, resp.Error = qomGet(req.Arguments, state)
		default:
			resp.Return = nil
			resp.Error = &qmpError{
				Class: "CommandNotFound",
				Desc:  "The command " + req.Execute + " has not been found",
			}
		}

		// Emulate an asynchronous event that must be skipped by clients.
		_ = encoder.Encode(map[string]any{"event": "RTC_CHANGE", "data": map[string]any{}})

		if err := encoder.Encode(resp); err != nil {
			return 1
		}
	}
}

func listTypesResult(rawArgs json.RawMessage, state machineState) []map[string]any {
	var args struct {
		Implements string `json:"implements"`
		Abstract   bool   `json:"abstract"`
	}

	_ = json.Unmarshal(rawArgs, &args)

	types := []map[string]any{}
	if args.Implements == "hpet" && state.registered {
		types = append(types, map[string]any{
			"name":   "hpet",
			"parent": "sys-bus-device",
		})
	}

	return types
}

func qomGet(rawArgs json.RawMessage, state machineState) (any, *qmpError) {
	var args struct {
		Path     string `json:"path"`
		Property string `json:"property"`
	}

	_ = json.Unmarshal(rawArgs, &args)

	if args.Path == "/machine" && args.Property == "hpet" {
		return state.enabled, nil
	}

	return nil, &qmpError{
		Class: "GenericError",
		Desc:  "Property '" + args.Property + "' not found",
	}
}
