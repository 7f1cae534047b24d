//go:build linux

/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package hostinfo detects the host kernel's version and, in the same
// single-forward-scan-over-a-table idiom as the teacher's
// pkg/linux/init.go (adaptToKernelVersion), derives a small set of
// host feature gates (SCHED_DEADLINE, cgroup v2, pidfd) from it. The
// simulated kernel in pkg/kcore never calls into these facilities
// itself (it's a model, not a real scheduler class), and no other
// package in this module calls Detect; it reports what the host would
// support to whoever calls it.
package hostinfo

import (
	"fmt"

	"github.com/docker/docker/pkg/parsers/kernel"
	"golang.org/x/sys/unix"
)

type gate struct {
	version kernel.VersionInfo
	flag    *bool
}

// Detect reads the host's uname() release string via golang.org/x/sys/unix
// (through the docker kernel-version parser, the teacher's own
// pkg/kernel wrapper around it) and provisions Info in one forward
// scan, the same shape as adaptToKernelVersion.
func Detect() (*Info, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil, fmt.Errorf("uname: %w", err)
	}

	v, err := kernel.ParseRelease(unix.ByteSliceToString(uts.Release[:]))
	if err != nil {
		return nil, fmt.Errorf("parsing kernel release: %w", err)
	}

	info := &Info{Version: *v}
	gates := []gate{
		{version: kernel.VersionInfo{Kernel: 3, Major: 14, Minor: 0}, flag: &info.SupportsSchedDeadline},
		{version: kernel.VersionInfo{Kernel: 4, Major: 5, Minor: 0}, flag: &info.SupportsCgroupV2},
		{version: kernel.VersionInfo{Kernel: 5, Major: 3, Minor: 0}, flag: &info.SupportsPidfd},
	}
	for _, g := range gates {
		*g.flag = kernel.CompareKernelVersion(info.Version, g.version) >= 0
	}

	return info, nil
}
