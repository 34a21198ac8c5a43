// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qtest_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/aibor/vmprobe/internal/qtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected uint64
		invalid  bool
	}{
		{
			name:     "zero without prefix",
			response: "OK 0000000000000000",
			expected: 0,
		},
		{
			name:     "hex prefix",
			response: "OK 0x000000008086a201",
			expected: 0x8086a201,
		},
		{
			name:     "short",
			response: "OK 0xff",
			expected: 0xff,
		},
		{
			name:     "failure",
			response: "FAIL Unknown command 'readl'",
			invalid:  true,
		},
		{
			name:     "ok without value",
			response: "OK",
			invalid:  true,
		},
		{
			name:     "not hex",
			response: "OK 0xzz",
			invalid:  true,
		},
		{
			name:     "empty",
			response: "",
			invalid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := qtest.ParseValue(tt.response)
			if tt.invalid {
				require.ErrorIs(t, err, &qtest.ResponseError{})
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

// serve answers each received line with the lines returned by handler.
func serve(conn net.Conn, handler func(string) []string) <-chan []string {
	received := make(chan []string, 1)

	go func() {
		var lines []string

		defer func() { received <- lines }()
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())

			for _, response := range handler(scanner.Text()) {
				_, err := conn.Write([]byte(response + "\n"))
				if err != nil {
					return
				}
			}
		}
	}()

	return received
}

func TestClient_Readl(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(serverConn, func(line string) []string {
		switch line {
		case "readl 0xfed00000":
			return []string{"IRQ raise 0", "IRQ lower 0", "OK 0x000000008086a201"}
		case "readl 0x0":
			return []string{"OK 0000000000000000"}
		default:
			return []string{"FAIL Unknown command"}
		}
	})

	client := qtest.NewClient(clientConn)

	value, err := client.Readl(t.Context(), 0xfed00000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x8086a201), value)

	value, err = client.Readl(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value)

	_, err = client.Readl(t.Context(), 0x1000)

	var respErr *qtest.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "readl 0x1000", respErr.Command)
	assert.Equal(t, "FAIL Unknown command", respErr.Response)

	require.NoError(t, client.Close())
	assert.Equal(t, []string{
		"readl 0xfed00000",
		"readl 0x0",
		"readl 0x1000",
	}, <-received)
}

func TestClient_Timeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(serverConn, func(string) []string { return nil })

	client := qtest.NewClient(clientConn)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Command(ctx, "clock_step")
	require.ErrorIs(t, err, qtest.ErrTimeout)

	require.NoError(t, client.Close())
	<-received
}

func TestClient_Canceled(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(serverConn, func(string) []string { return nil })

	client := qtest.NewClient(clientConn)

	ctx, cancel := context.WithCancel(t.Context())
	stop := time.AfterFunc(50*time.Millisecond, cancel)
	defer stop.Stop()

	_, err := client.Command(ctx, "clock_step")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, qtest.ErrTimeout)

	require.NoError(t, client.Close())
	<-received
}
