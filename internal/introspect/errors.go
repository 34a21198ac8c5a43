// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package introspect

import "errors"

// ErrUnknownExpect is returned for unknown [Expect] names.
var ErrUnknownExpect = errors.New("unknown expectation")
