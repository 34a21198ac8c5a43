// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qmp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/aibor/vmprobe/internal/qmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = `{"QMP": {"version": {"qemu": {"micro": 0, "minor": 2, "major": 9}, "package": ""}, "capabilities": ["oob"]}}`

type serverRequest struct {
	Execute   string         `json:"execute"`
	Arguments map[string]any `json:"arguments"`
	ID        uint64         `json:"id"`
}

// serve runs a scripted QMP server on the given connection. The handler
// returns the raw lines to send for each request.
func serve(
	t *testing.T,
	conn net.Conn,
	greet string,
	handler func(serverRequest) []string,
) <-chan []serverRequest {
	t.Helper()

	received := make(chan []serverRequest, 1)

	go func() {
		var requests []serverRequest

		defer func() { received <- requests }()
		defer conn.Close()

		writer := bufio.NewWriter(conn)

		write := func(line string) bool {
			_, err := writer.WriteString(line + "\n")
			if err == nil {
				err = writer.Flush()
			}

			return err == nil
		}

		if !write(greet) {
			return
		}

		decoder := json.NewDecoder(conn)

		for {
			var req serverRequest
			if err := decoder.Decode(&req); err != nil {
				return
			}

			requests = append(requests, req)

			for _, line := range handler(req) {
				if !write(line) {
					return
				}
			}
		}
	}()

	return received
}

func returnLine(id uint64, value string) string {
	return `{"return": ` + value + `, "id": ` + jsonNumber(id) + `}`
}

func jsonNumber(n uint64) string {
	data, _ := json.Marshal(n)
	return string(data)
}

func TestClient(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(t, serverConn, greeting, func(req serverRequest) []string {
		switch req.Execute {
		case "qom-list-types":
			return []string{
				`{"event": "RTC_CHANGE", "data": {"offset": 0}, "timestamp": {"seconds": 1, "microseconds": 2}}`,
				returnLine(req.ID+100, `[]`),
				returnLine(req.ID, `[{"name": "hpet", "parent": "sys-bus-device"}]`),
			}
		case "qom-get":
			return []string{returnLine(req.ID, `true`)}
		case "nope":
			return []string{
				`{"error": {"class": "CommandNotFound", "desc": "The command nope has not been found"}, "id": ` +
					jsonNumber(req.ID) + `}`,
			}
		default:
			return []string{returnLine(req.ID, `{}`)}
		}
	})

	client := qmp.NewClient(clientConn)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Handshake(ctx))

	t.Run("list types", func(t *testing.T) {
		var types []struct {
			Name string `json:"name"`
		}

		err := client.ExecuteInto(ctx, "qom-list-types", map[string]any{
			"implements": "hpet",
			"abstract":   false,
		}, &types)
		require.NoError(t, err)
		require.Len(t, types, 1)
		assert.Equal(t, "hpet", types[0].Name)
	})

	t.Run("get property", func(t *testing.T) {
		raw, err := client.Execute(ctx, "qom-get", map[string]any{
			"path":     "/machine",
			"property": "hpet",
		})
		require.NoError(t, err)
		assert.JSONEq(t, `true`, string(raw))
	})

	t.Run("error response", func(t *testing.T) {
		_, err := client.Execute(ctx, "nope", nil)
		require.ErrorIs(t, err, &qmp.Error{Class: "CommandNotFound"})
		require.ErrorIs(t, err, &qmp.Error{})
		require.NotErrorIs(t, err, &qmp.Error{Class: "GenericError"})
		assert.ErrorContains(t, err, "The command nope has not been found")
	})

	require.NoError(t, client.Close())

	requests := <-received
	require.Len(t, requests, 4)
	assert.Equal(t, qmp.CapabilitiesCommand, requests[0].Execute)
	assert.Equal(t, "qom-list-types", requests[1].Execute)
	assert.Equal(t, map[string]any{"implements": "hpet", "abstract": false},
		requests[1].Arguments)
	assert.Equal(t, "qom-get", requests[2].Execute)
	assert.Nil(t, requests[3].Arguments)

	for idx := 1; idx < len(requests); idx++ {
		assert.Greater(t, requests[idx].ID, requests[idx-1].ID)
	}
}

func TestClient_Handshake(t *testing.T) {
	tests := []struct {
		name        string
		greeting    string
		assertError require.ErrorAssertionFunc
	}{
		{
			name:        "success",
			greeting:    greeting,
			assertError: require.NoError,
		},
		{
			name:     "no greeting",
			greeting: `{"event": "SHUTDOWN"}`,
			assertError: func(t require.TestingT, err error, _ ...any) {
				require.ErrorIs(t, err, qmp.ErrNoGreeting)
			},
		},
		{
			name:     "garbage",
			greeting: `not json`,
			assertError: func(t require.TestingT, err error, _ ...any) {
				var syntaxErr *json.SyntaxError
				require.ErrorAs(t, err, &syntaxErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()

			received := serve(t, serverConn, tt.greeting, func(req serverRequest) []string {
				return []string{returnLine(req.ID, `{}`)}
			})

			client := qmp.NewClient(clientConn)

			tt.assertError(t, client.Handshake(t.Context()))

			require.NoError(t, client.Close())
			<-received
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(t, serverConn, greeting, func(req serverRequest) []string {
		if req.Execute == qmp.CapabilitiesCommand {
			return []string{returnLine(req.ID, `{}`)}
		}

		// Never answer.
		return nil
	})

	client := qmp.NewClient(clientConn)
	require.NoError(t, client.Handshake(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Execute(ctx, "qom-get", nil)
	require.ErrorIs(t, err, qmp.ErrTimeout)

	require.NoError(t, client.Close())
	<-received
}

func TestClient_Canceled(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := serve(t, serverConn, greeting, func(req serverRequest) []string {
		if req.Execute == qmp.CapabilitiesCommand {
			return []string{returnLine(req.ID, `{}`)}
		}

		return nil
	})

	client := qmp.NewClient(clientConn)
	require.NoError(t, client.Handshake(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	stop := time.AfterFunc(50*time.Millisecond, cancel)
	defer stop.Stop()

	_, err := client.Execute(ctx, "qom-get", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, qmp.ErrTimeout)

	require.NoError(t, client.Close())
	<-received
}
