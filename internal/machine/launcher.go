// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/qmp"
	"github.com/aibor/vmprobe/internal/qtest"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout is the default time limit for launching a machine.
	DefaultTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default time granted for a graceful
	// shutdown before the process is killed.
	DefaultShutdownTimeout = 5 * time.Second

	monitorID = "mon"

	// Time granted for a failing process to terminate, so its failure can
	// be told apart from a channel failure.
	exitGrace = 500 * time.Millisecond

	qtestSocket = "qtest.sock"
	qmpSocket   = "qmp.sock"
)

// Launcher launches halted QEMU machines.
type Launcher struct {
	// Path or name of the QEMU binary.
	Executable string

	// Machine type, e.g. "pc". QEMU's default machine if empty.
	Machine string

	// Arguments passed to every machine.
	ExtraArgs []string

	// Upper bound for starting the process, accepting both channels and
	// the QMP handshake. [DefaultTimeout] if not set.
	Timeout time.Duration

	// Time granted for a graceful shutdown on [Machine.Close].
	// [DefaultShutdownTimeout] if not set.
	ShutdownTimeout time.Duration
}

// Args returns the QEMU arguments for a machine with its channels connected
// to the sockets in the given directory, followed by [Launcher.ExtraArgs]
// and the given extra args.
//
// Extra args must not override any of the options the machine depends on,
// like -display or -qtest. Those result in an error wrapping
// [qemu.ErrArgumentCollision].
func (l *Launcher) Args(dir string, extraArgs ...string) ([]string, error) {
	args := qemu.Args{
		qemu.Flag("S"),
		qemu.Option("display", "none"),
		qemu.Option("accel", "qtest"),
		qemu.Option("qtest", "unix:"+filepath.Join(dir, qtestSocket)),
		qemu.Repeatable("chardev",
			"socket",
			"id="+monitorID,
			"path="+filepath.Join(dir, qmpSocket),
		),
		qemu.Option("mon", "chardev="+monitorID, "mode=control"),
	}

	if l.Machine != "" {
		args = append(args, qemu.Repeatable("machine", l.Machine))
	}

	extra, err := qemu.ParseArgs(slices.Concat(l.ExtraArgs, extraArgs))
	if err != nil {
		return nil, fmt.Errorf("extra args: %w", err)
	}

	return append(args, extra...).Strings()
}

// Launch starts a halted machine with the given additional arguments and
// connects to its channels.
//
// If the process terminates before it is connected, the returned error is a
// [*LaunchError] wrapping [ErrExitedEarly] that carries the process' stderr.
// The returned [Machine] must be closed by the caller.
func (l *Launcher) Launch(ctx context.Context, extraArgs ...string) (*Machine, error) {
	if l.Executable == "" {
		return nil, fmt.Errorf("executable: %w", qemu.ErrEmptyValue)
	}

	dir, err := os.MkdirTemp("", "vmprobe-")
	if err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	machine, err := l.launch(ctx, dir, extraArgs)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return machine, nil
}

func (l *Launcher) launch(
	ctx context.Context,
	dir string,
	extraArgs []string,
) (*Machine, error) {
	args, err := l.Args(dir, extraArgs...)
	if err != nil {
		return nil, err
	}

	qtestListener, err := listen(filepath.Join(dir, qtestSocket))
	if err != nil {
		return nil, err
	}
	defer qtestListener.Close()

	qmpListener, err := listen(filepath.Join(dir, qmpSocket))
	if err != nil {
		return nil, err
	}
	defer qmpListener.Close()

	machine := &Machine{
		dir:             dir,
		exited:          make(chan struct{}),
		shutdownTimeout: l.shutdownTimeout(),
	}

	//nolint:gosec
	machine.cmd = exec.Command(l.Executable, args...)
	machine.cmd.Stderr = &machine.stderr
	machine.cmd.WaitDelay = qemu.DefaultWaitDelay

	slog.Debug("QEMU machine command", slog.String("command", machine.cmd.String()))

	err = machine.cmd.Start()
	if err != nil {
		return nil, qemu.StartError(l.Executable, err)
	}

	go machine.reap()

	launchCtx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	err = machine.connect(launchCtx, qtestListener, qmpListener)
	if err != nil {
		return nil, machine.launchError(launchCtx, err)
	}

	return machine, nil
}

func (l *Launcher) timeout() time.Duration {
	if l.Timeout > 0 {
		return l.Timeout
	}

	return DefaultTimeout
}

func (l *Launcher) shutdownTimeout() time.Duration {
	if l.ShutdownTimeout > 0 {
		return l.ShutdownTimeout
	}

	return DefaultShutdownTimeout
}

func listen(path string) (*net.UnixListener, error) {
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	return listener, nil
}

// accept waits for a single connection. The listener is closed once the
// context is done or the process exited, which aborts the accept.
func accept(
	ctx context.Context,
	listener *net.UnixListener,
	exited <-chan struct{},
) (net.Conn, error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-exited:
		case <-done:
			return
		}

		_ = listener.Close()
	}()

	conn, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept %s: %w", listener.Addr(), err)
	}

	return conn, nil
}

func (m *Machine) connect(
	ctx context.Context,
	qtestListener *net.UnixListener,
	qmpListener *net.UnixListener,
) error {
	var qtestConn, qmpConn net.Conn

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		qtestConn, err = accept(groupCtx, qtestListener, m.exited)

		return err
	})

	group.Go(func() error {
		var err error
		qmpConn, err = accept(groupCtx, qmpListener, m.exited)

		return err
	})

	err := group.Wait()
	if err != nil {
		for _, conn := range []net.Conn{qtestConn, qmpConn} {
			if conn != nil {
				_ = conn.Close()
			}
		}

		return err
	}

	m.qtest = qtest.NewClient(qtestConn)
	m.qmp = qmp.NewClient(qmpConn)

	// A dying process closes its end of the channel, so the handshake does
	// not outlive the process.
	err = m.qmp.Handshake(ctx)
	if err != nil {
		_ = m.qtest.Close()
		_ = m.qmp.Close()

		return fmt.Errorf("qmp handshake: %w", err)
	}

	return nil
}

// launchError kills the process and returns the error for the failed
// launch.
func (m *Machine) launchError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
	case m.awaitExit(exitGrace):
		err = ErrExitedEarly
	}

	m.kill()

	status := m.status

	return &LaunchError{Status: &status, Stderr: m.Stderr(), Err: err}
}
