// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipe

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CopyFunc defines a function that reads the data from the given reader into
// the given writer.
//
// It may copy the data as is, like [io.Copy], or mutate or filter it as needed.
type CopyFunc func(dst io.Writer, src io.Reader) (int64, error)

var _ CopyFunc = io.Copy

var _ CopyFunc = ScrubCR

// ScrubCR is a [CopyFunc] that translates "\r\n" and lone "\r" line endings
// into "\n".
//
// Lines are not length limited.
func ScrubCR(dst io.Writer, src io.Reader) (int64, error) {
	var written int64

	reader := bufio.NewReader(src)

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return written, fmt.Errorf("read: %w", readErr)
		}

		if line != "" {
			line = strings.TrimSuffix(line, "\r\n")
			if len(line) > 0 && line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
			}

			line = strings.ReplaceAll(line, "\r", "\n")
			if readErr == nil {
				line += "\n"
			}

			n, err := io.WriteString(dst, line)
			written += int64(n)

			if err != nil {
				return written, fmt.Errorf("write: %w", err)
			}
		}

		if readErr != nil {
			return written, nil
		}
	}
}

// Text decodes the given process output as text using [ScrubCR].
func Text(data []byte) string {
	var out strings.Builder

	out.Grow(len(data))

	// Neither reading from memory nor writing into a builder fails.
	_, _ = ScrubCR(&out, bytes.NewReader(data))

	return out.String()
}
