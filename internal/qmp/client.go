// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// CapabilitiesCommand is the command that leaves the negotiation mode.
const CapabilitiesCommand = "qmp_capabilities"

type request struct {
	Execute   string         `json:"execute"`
	Arguments map[string]any `json:"arguments,omitempty"`
	ID        uint64         `json:"id"`
}

type message struct {
	QMP    json.RawMessage `json:"QMP"`
	Event  string          `json:"event"`
	Return json.RawMessage `json:"return"`
	Error  *Error          `json:"error"`
	ID     *uint64         `json:"id"`
}

// Client is a QMP client on an established connection.
//
// Commands are executed one at a time. A Client is safe for concurrent use,
// but concurrent calls are serialized.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	lastID  uint64
}

// NewClient returns a new [Client] for the given connection. The caller
// must run [Client.Handshake] before executing commands.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}
}

// Handshake reads the server greeting and negotiates capabilities.
func (c *Client) Handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := c.withDeadline(ctx)
	defer done()

	var greeting message

	err := c.decoder.Decode(&greeting)
	if err != nil {
		return fmt.Errorf("read greeting: %w", wrapConnError(ctx, err))
	}

	if len(greeting.QMP) == 0 {
		return ErrNoGreeting
	}

	slog.Debug("QMP greeting", slog.String("info", string(greeting.QMP)))

	_, err = c.execute(ctx, CapabilitiesCommand, nil)

	return err
}

// Execute runs the command with the given arguments and returns the raw
// return value of the response.
//
// Error responses are returned as [*Error].
func (c *Client) Execute(
	ctx context.Context,
	command string,
	args map[string]any,
) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := c.withDeadline(ctx)
	defer done()

	return c.execute(ctx, command, args)
}

// ExecuteInto runs the command like [Client.Execute] and decodes the return
// value into result.
func (c *Client) ExecuteInto(
	ctx context.Context,
	command string,
	args map[string]any,
	result any,
) error {
	raw, err := c.Execute(ctx, command, args)
	if err != nil {
		return err
	}

	err = json.Unmarshal(raw, result)
	if err != nil {
		return fmt.Errorf("%s: decode return: %w", command, err)
	}

	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) execute(
	ctx context.Context,
	command string,
	args map[string]any,
) (json.RawMessage, error) {
	c.lastID++
	id := c.lastID

	slog.Debug("QMP command",
		slog.String("command", command),
		slog.Any("args", args))

	err := c.encoder.Encode(request{
		Execute:   command,
		Arguments: args,
		ID:        id,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: send: %w", command, wrapConnError(ctx, err))
	}

	for {
		var msg message

		err := c.decoder.Decode(&msg)
		if err != nil {
			return nil, fmt.Errorf("%s: receive: %w", command, wrapConnError(ctx, err))
		}

		if msg.Event != "" {
			slog.Debug("QMP event skipped", slog.String("event", msg.Event))
			continue
		}

		if msg.ID != nil && *msg.ID != id {
			slog.Debug("QMP response for other command skipped",
				slog.Uint64("id", *msg.ID))

			continue
		}

		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %w", command, msg.Error)
		}

		if msg.Return == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrUnexpectedResponse)
		}

		return msg.Return, nil
	}
}

// withDeadline applies the context's deadline to the connection and aborts
// pending I/O once the context is done. The returned function must be
// called when the I/O is complete.
func (c *Client) withDeadline(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})

	return func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}
}

// wrapConnError returns the context's error for a canceled context and
// [ErrTimeout] for any other deadline hit.
func wrapConnError(ctx context.Context, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}

		return ErrTimeout
	}

	return err
}
