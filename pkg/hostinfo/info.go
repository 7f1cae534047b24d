/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package hostinfo

import "github.com/docker/docker/pkg/parsers/kernel"

// Info is the detected host's kernel version plus the feature gates
// derived from it.
type Info struct {
	Version kernel.VersionInfo

	// SupportsSchedDeadline reports whether SCHED_DEADLINE, the
	// closest real-world analogue to this module's quantum-based
	// priority decay, is available (Linux >= 3.14).
	SupportsSchedDeadline bool
	// SupportsCgroupV2 reports whether the unified cgroup hierarchy,
	// which a real port's process manager would use to enforce the
	// privilege table's resource limits, is available (Linux >= 4.5).
	SupportsCgroupV2 bool
	// SupportsPidfd reports whether pidfd_open is available, the
	// modern replacement for polling a process table slot for death
	// (Linux >= 5.3).
	SupportsPidfd bool
}
