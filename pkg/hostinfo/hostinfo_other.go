//go:build !linux

/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package hostinfo

import "errors"

// Detect is unavailable off Linux, the same honest failure the
// teacher's pkg/kernel/uname_unsupported.go reports rather than
// faking a version.
func Detect() (*Info, error) {
	return nil, errors.New("hostinfo: kernel version detection is not available on this platform")
}
