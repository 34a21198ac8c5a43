// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qtest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrTimeout is returned if the peer did not respond in time.
var ErrTimeout = errors.New("timeout")

const (
	okPrefix  = "OK"
	irqPrefix = "IRQ"
)

// ResponseError is returned for responses that are not a success.
type ResponseError struct {
	Command  string
	Response string
}

// Error implements the [error] interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("qtest %q: %s", e.Command, e.Response)
}

// Is implements the [errors.Is] interface.
func (*ResponseError) Is(other error) bool {
	_, ok := other.(*ResponseError)
	return ok
}

// Client sends qtest commands on an established connection.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient returns a new [Client] on the given connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Command sends the given command line and returns the response line
// without the line break. Asynchronous IRQ notifications are skipped.
func (c *Client) Command(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})

	defer func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}()

	slog.Debug("qtest command", slog.String("command", line))

	_, err := c.conn.Write([]byte(line + "\n"))
	if err != nil {
		return "", fmt.Errorf("send %q: %w", line, wrapConnError(ctx, err))
	}

	for {
		response, err := c.reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("receive %q: %w", line, wrapConnError(ctx, err))
		}

		response = strings.TrimRight(response, "\r\n")

		if strings.HasPrefix(response, irqPrefix) {
			continue
		}

		return response, nil
	}
}

// Readl reads the 32 bit value at the given guest physical address.
//
// A response other than "OK" is returned as [*ResponseError].
func (c *Client) Readl(ctx context.Context, addr uint64) (uint64, error) {
	command := fmt.Sprintf("readl 0x%x", addr)

	response, err := c.Command(ctx, command)
	if err != nil {
		return 0, err
	}

	value, err := ParseValue(response)
	if err != nil {
		var respErr *ResponseError
		if errors.As(err, &respErr) {
			respErr.Command = command
		}

		return 0, err
	}

	return value, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ParseValue parses a value response of the form "OK <hex>". The hex value
// may have a "0x" prefix.
func ParseValue(response string) (uint64, error) {
	fields := strings.Fields(response)
	if len(fields) != 2 || fields[0] != okPrefix {
		return 0, &ResponseError{Response: response}
	}

	digits := strings.TrimPrefix(strings.TrimPrefix(fields[1], "0x"), "0X")

	value, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, &ResponseError{Response: response}
	}

	return value, nil
}

func wrapConnError(ctx context.Context, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}

		return ErrTimeout
	}

	return err
}
