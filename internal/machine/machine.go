// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/pipe"
	"github.com/aibor/vmprobe/internal/qmp"
	"github.com/aibor/vmprobe/internal/qtest"
)

// QuitCommand is the QMP command for a graceful shutdown.
const QuitCommand = "quit"

// Machine is a running halted QEMU machine.
type Machine struct {
	cmd    *exec.Cmd
	dir    string
	stderr bytes.Buffer

	qmp   *qmp.Client
	qtest *qtest.Client

	// Closed by the reaper once the process has terminated. status is only
	// valid after that.
	exited chan struct{}
	status exitcode.Status

	shutdownTimeout time.Duration
	closeOnce       sync.Once
	closeErr        error
}

func (m *Machine) reap() {
	_ = m.cmd.Wait()
	m.status = exitcode.FromProcessState(m.cmd.ProcessState)

	slog.Debug("QEMU machine terminated", slog.String("status", m.status.String()))

	close(m.exited)
}

// awaitExit returns true if the process terminates within the given time.
func (m *Machine) awaitExit(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.exited:
		return true
	case <-timer.C:
		return false
	}
}

func (m *Machine) kill() {
	select {
	case <-m.exited:
		return
	default:
	}

	_ = m.cmd.Process.Kill()

	<-m.exited
}

// Exited returns true if the process has terminated.
func (m *Machine) Exited() bool {
	select {
	case <-m.exited:
		return true
	default:
		return false
	}
}

// Stderr returns the process' stderr output. It is empty as long as the
// process is running.
func (m *Machine) Stderr() string {
	if !m.Exited() {
		return ""
	}

	return pipe.Text(m.stderr.Bytes())
}

// Status returns the termination status of the process and true, if it has
// terminated. Otherwise it returns false.
func (m *Machine) Status() (exitcode.Status, bool) {
	if !m.Exited() {
		return exitcode.Status{}, false
	}

	return m.status, true
}

// Execute runs a QMP command and decodes its return value into result. If
// result is nil, the return value is discarded.
func (m *Machine) Execute(
	ctx context.Context,
	command string,
	args map[string]any,
	result any,
) error {
	var err error

	if result == nil {
		_, err = m.qmp.Execute(ctx, command, args)
	} else {
		err = m.qmp.ExecuteInto(ctx, command, args, result)
	}

	return m.wrapQueryError(err)
}

// Readl reads a 32 bit value from the given guest physical address via
// qtest.
func (m *Machine) Readl(ctx context.Context, addr uint64) (uint64, error) {
	value, err := m.qtest.Readl(ctx, addr)
	return value, m.wrapQueryError(err)
}

// wrapQueryError turns errors caused by a terminated process into a
// [*LaunchError] with the process' output.
func (m *Machine) wrapQueryError(err error) error {
	if err == nil || errors.Is(err, &qmp.Error{}) || errors.Is(err, &qtest.ResponseError{}) {
		return err
	}

	if !m.awaitExit(exitGrace) {
		return err
	}

	status := m.status

	return &LaunchError{
		Status: &status,
		Stderr: m.Stderr(),
		Err:    fmt.Errorf("%w: %w", ErrExitedEarly, err),
	}
}

// Close shuts the machine down and releases all its resources.
//
// It asks QEMU to quit via QMP and kills the process if it is still running
// after the shutdown timeout. It is safe to call Close multiple times.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()

		if !m.Exited() {
			_, err := m.qmp.Execute(ctx, QuitCommand, nil)
			if err != nil {
				slog.Debug("QMP quit failed", slog.Any("error", err))
			}
		}

		select {
		case <-m.exited:
		case <-ctx.Done():
			slog.Warn("QEMU machine did not quit, killing it")
		}

		m.kill()

		_ = m.qmp.Close()
		_ = m.qtest.Close()

		m.closeErr = os.RemoveAll(m.dir)
	})

	return m.closeErr
}
