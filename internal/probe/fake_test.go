// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe_test

import (
	"context"
	"strings"

	"github.com/aibor/vmprobe/internal/qemu"
)

// fakeRunner returns canned results keyed by the space joined arguments.
type fakeRunner struct {
	results     map[string]*qemu.Result
	errs        map[string]error
	invocations []qemu.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv qemu.Invocation) (*qemu.Result, error) {
	f.invocations = append(f.invocations, inv)

	key := strings.Join(inv.Args, " ")

	if err, exists := f.errs[key]; exists {
		return nil, err
	}

	if result, exists := f.results[key]; exists {
		return result, nil
	}

	return &qemu.Result{}, nil
}

type recordingProgress struct {
	started  []string
	total    int
	done     []string
	finished int
}

func (p *recordingProgress) Start(probe string, total int) {
	p.started = append(p.started, probe)
	p.total += total
}

func (p *recordingProgress) Done(subject string) {
	p.done = append(p.done, subject)
}

func (p *recordingProgress) Finish() {
	p.finished++
}
