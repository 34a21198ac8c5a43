// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
)

var (
	// ErrReadBuildInfo is returned if the build info can not be read.
	ErrReadBuildInfo = errors.New("failed to read build info")

	// ErrUnknownFormat is returned for unknown report formats.
	ErrUnknownFormat = errors.New("unknown report format")
)

// ConfigError wraps errors that occur while loading the configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Is(other error) bool {
	_, ok := other.(*ConfigError)
	return ok
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
