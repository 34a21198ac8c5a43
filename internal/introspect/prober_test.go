// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package introspect_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/fakeqemu"
	"github.com/aibor/vmprobe/internal/introspect"
	"github.com/aibor/vmprobe/internal/machine"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/qtest"
	"github.com/aibor/vmprobe/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession answers queries from a fixed [introspect.Answer].
type fakeSession struct {
	answer   introspect.Answer
	readlErr error
	closed   bool
}

func (s *fakeSession) Execute(
	_ context.Context,
	command string,
	_ map[string]any,
	result any,
) error {
	var raw string

	switch command {
	case "qom-list-types":
		raw = `[]`
		if s.answer.Registered {
			raw = `[{"name": "hpet"}]`
		}
	case "qom-get":
		raw = `false`
		if s.answer.Enabled {
			raw = `true`
		}
	default:
		return errors.New("unexpected command " + command)
	}

	return json.Unmarshal([]byte(raw), result)
}

func (s *fakeSession) Readl(context.Context, uint64) (uint64, error) {
	if s.readlErr != nil {
		return 0, s.readlErr
	}

	if s.answer.Active {
		return 0x8086a201, nil
	}

	return 0, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeLauncher returns a session per launch. The answer depends on the
// launch arguments.
type fakeLauncher struct {
	answers  map[string]introspect.Answer
	errs     map[string]error
	readlErr error
	launches []string
	sessions []*fakeSession
}

func (l *fakeLauncher) Launch(_ context.Context, args ...string) (introspect.Session, error) {
	key := strings.Join(args, " ")
	l.launches = append(l.launches, key)

	if err, exists := l.errs[key]; exists {
		return nil, err
	}

	session := &fakeSession{answer: l.answers[key], readlErr: l.readlErr}
	l.sessions = append(l.sessions, session)

	return session, nil
}

func TestProber_Evaluate(t *testing.T) {
	prober := introspect.Prober{Feature: introspect.HPET()}

	tests := []struct {
		name     string
		expect   introspect.Expect
		answer   introspect.Answer
		expected []string
	}{
		{
			name:   "default registered present",
			expect: introspect.Default,
			answer: introspect.Answer{Registered: true, Enabled: true, Active: true},
		},
		{
			name:   "default unregistered absent",
			expect: introspect.Default,
		},
		{
			name:   "default registered absent",
			expect: introspect.Default,
			answer: introspect.Answer{Registered: true},
			expected: []string{
				"property hpet is false, expected true",
				"HPET device active is false, expected true",
			},
		},
		{
			name:   "absent",
			expect: introspect.Absent,
			answer: introspect.Answer{Registered: true},
		},
		{
			name:   "absent but enabled",
			expect: introspect.Absent,
			answer: introspect.Answer{Registered: true, Enabled: true, Active: true},
			expected: []string{
				"property hpet is true, expected false",
				"HPET device active is true, expected false",
			},
		},
		{
			name:   "present",
			expect: introspect.Present,
			answer: introspect.Answer{Registered: true, Enabled: true, Active: true},
		},
		{
			name:   "property disagrees with register",
			expect: introspect.Present,
			answer: introspect.Answer{Registered: true, Enabled: true},
			expected: []string{
				"HPET device active is false, expected true",
				"property hpet is true, but HPET device active is false",
			},
		},
		{
			name:   "disagreement reported if register matches",
			expect: introspect.Absent,
			answer: introspect.Answer{Registered: true, Enabled: true},
			expected: []string{
				"property hpet is true, expected false",
				"property hpet is true, but HPET device active is false",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, prober.Evaluate(tt.expect, tt.answer))
		})
	}
}

func TestProber_Run(t *testing.T) {
	present := introspect.Answer{Registered: true, Enabled: true, Active: true}
	registered := introspect.Answer{Registered: true}

	tests := []struct {
		name             string
		launcher         *fakeLauncher
		expectedChecked  []string
		expectedDefects  []string
		expectedSkips    []string
		expectedLaunches []string
	}{
		{
			name: "all pass with hpet",
			launcher: &fakeLauncher{
				answers: map[string]introspect.Answer{
					"":                  present,
					"-no-hpet":          registered,
					"-machine hpet=off": registered,
					"-machine hpet=on":  present,
				},
			},
			expectedChecked: []string{
				"introspect/default",
				"introspect/no-flag",
				"introspect/machine-off",
				"introspect/machine-on",
			},
			expectedLaunches: []string{
				"",
				"-no-hpet",
				"-machine hpet=off",
				"",
				"-machine hpet=on",
			},
		},
		{
			name:     "skip present without type",
			launcher: &fakeLauncher{},
			expectedChecked: []string{
				"introspect/default",
				"introspect/no-flag",
				"introspect/machine-off",
			},
			expectedSkips: []string{"machine-on"},
			expectedLaunches: []string{
				"",
				"-no-hpet",
				"-machine hpet=off",
				"",
			},
		},
		{
			name: "flag ignored",
			launcher: &fakeLauncher{
				answers: map[string]introspect.Answer{
					"":                  present,
					"-no-hpet":          present,
					"-machine hpet=off": registered,
					"-machine hpet=on":  present,
				},
			},
			expectedChecked: []string{
				"introspect/default",
				"introspect/no-flag",
				"introspect/machine-off",
				"introspect/machine-on",
			},
			expectedDefects: []string{"no-flag"},
			expectedLaunches: []string{
				"",
				"-no-hpet",
				"-machine hpet=off",
				"",
				"-machine hpet=on",
			},
		},
		{
			name: "launch failure continues",
			launcher: &fakeLauncher{
				answers: map[string]introspect.Answer{
					"":                  present,
					"-machine hpet=off": registered,
					"-machine hpet=on":  present,
				},
				errs: map[string]error{
					"-no-hpet": &machine.LaunchError{
						Status: ptr(exitcode.Signaled(syscall.SIGSEGV)),
						Stderr: "boom\n",
						Err:    machine.ErrExitedEarly,
					},
				},
			},
			expectedChecked: []string{
				"introspect/default",
				"introspect/no-flag",
				"introspect/machine-off",
				"introspect/machine-on",
			},
			expectedDefects: []string{"no-flag"},
			expectedLaunches: []string{
				"",
				"-no-hpet",
				"-machine hpet=off",
				"",
				"-machine hpet=on",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := introspect.Prober{
				Launcher: tt.launcher,
				Feature:  introspect.HPET(),
			}

			var rep report.Report

			err := prober.Run(t.Context(), introspect.HPETScenarios(), &rep)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedChecked, rep.Checked())
			assert.Equal(t, tt.expectedLaunches, tt.launcher.launches)

			var defects []string
			for _, defect := range rep.Defects() {
				defects = append(defects, defect.Subject)
			}

			assert.Equal(t, tt.expectedDefects, defects)

			var skips []string
			for _, skip := range rep.Skips() {
				skips = append(skips, skip.Subject)
			}

			assert.Equal(t, tt.expectedSkips, skips)

			for idx, session := range tt.launcher.sessions {
				assert.True(t, session.closed, "session %d closed", idx)
			}
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestProber_Run_CrashDefect(t *testing.T) {
	launcher := &fakeLauncher{
		errs: map[string]error{
			"": &machine.LaunchError{
				Status: ptr(exitcode.Signaled(syscall.SIGABRT)),
				Stderr: "assertion failed\n",
				Err:    machine.ErrExitedEarly,
			},
		},
	}
	prober := introspect.Prober{Launcher: launcher, Feature: introspect.HPET()}

	var rep report.Report

	err := prober.Run(t.Context(), introspect.HPETScenarios()[:1], &rep)
	require.NoError(t, err)

	defects := rep.Defects()
	require.Len(t, defects, 1)
	assert.Equal(t, report.KindCrash, defects[0].Kind)
	assert.Equal(t, "assertion failed\n", defects[0].Stderr)
}

func TestProber_Run_SetupError(t *testing.T) {
	launcher := &fakeLauncher{
		errs: map[string]error{
			"": &qemu.CommandError{Executable: "qemu", Err: qemu.ErrExecutableNotFound},
		},
	}
	prober := introspect.Prober{Launcher: launcher, Feature: introspect.HPET()}

	var rep report.Report

	err := prober.Run(t.Context(), introspect.HPETScenarios(), &rep)
	require.ErrorIs(t, err, qemu.ErrExecutableNotFound)
	assert.Equal(t, []string{""}, launcher.launches)
}

func TestProber_Query_RegisterFailure(t *testing.T) {
	launcher := &fakeLauncher{
		answers: map[string]introspect.Answer{
			"": {Registered: true, Enabled: true, Active: true},
		},
		readlErr: &qtest.ResponseError{Response: "FAIL"},
	}
	prober := introspect.Prober{Launcher: launcher, Feature: introspect.HPET()}

	answer, err := prober.Query(t.Context())
	require.NoError(t, err)
	assert.Equal(t, introspect.Answer{Registered: true, Enabled: true}, answer)
}

func TestProber_FakeQEMU(t *testing.T) {
	tests := []struct {
		name            string
		hpet            string
		expectedChecked int
		expectedDefects []string
		expectedSkips   []string
	}{
		{
			name:            "present",
			hpet:            fakeqemu.HPETPresent,
			expectedChecked: 4,
		},
		{
			name:            "absent",
			hpet:            fakeqemu.HPETAbsent,
			expectedChecked: 3,
			expectedSkips:   []string{"machine-on"},
		},
		{
			name:            "inconsistent",
			hpet:            fakeqemu.HPETInconsistent,
			expectedChecked: 4,
			expectedDefects: []string{"default", "machine-on"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &machine.Launcher{
				Executable: fakeqemu.Executable(t, fakeqemu.Behavior{HPET: tt.hpet}),
				Timeout:    10 * time.Second,
			}
			prober := introspect.Prober{
				Launcher:     introspect.MachineLauncher{Launcher: launcher},
				Feature:      introspect.HPET(),
				QueryTimeout: 5 * time.Second,
			}

			var rep report.Report

			err := prober.Run(t.Context(), introspect.HPETScenarios(), &rep)
			require.NoError(t, err)

			assert.Len(t, rep.Checked(), tt.expectedChecked)

			var defects []string
			for _, defect := range rep.Defects() {
				defects = append(defects, defect.Subject)
				assert.Equal(t, report.KindMismatch, defect.Kind)
			}

			assert.Equal(t, tt.expectedDefects, defects)

			var skips []string
			for _, skip := range rep.Skips() {
				skips = append(skips, skip.Subject)
			}

			assert.Equal(t, tt.expectedSkips, skips)
		})
	}
}
