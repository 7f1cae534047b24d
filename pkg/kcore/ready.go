package kcore

// pickProc scans priorities 0..NRSchedQueues-1 for the first non-empty
// queue and sets NextPtr to its head; if that head is billable, BillPtr
// follows it too. Guaranteed to find IDLE at the end (spec.md §4.8).
func (pt *ProcTable) pickProc() {
	for q := 0; q < len(pt.ready); q++ {
		head := pt.ready[q].Head
		if head == NoProc {
			continue
		}
		pt.NextPtr = head
		if pt.procs[head].Priv != nil && pt.procs[head].Priv.SFlags&SFlagBillable != 0 {
			pt.BillPtr = head
		}
		return
	}
}

// Ready adds rp to its priority's queue (spec.md §4.5): head and tail
// if empty, prepended if the process's privilege asks for RDY_Q_HEAD
// (I/O-bound favoritism), appended otherwise. Always recomputes the
// ready-set winner afterward.
func (pt *ProcTable) Ready(rp ProcNr) {
	p := &pt.procs[rp]
	q := pt.queue(p.Priority)

	switch {
	case q.Head == NoProc:
		q.Head = rp
		q.Tail = rp
		p.NextReady = NoProc
	case p.Priv != nil && p.Priv.SFlags&SFlagRdyQHead != 0:
		p.NextReady = q.Head
		q.Head = rp
	default:
		pt.procs[q.Tail].NextReady = rp
		p.NextReady = NoProc
		q.Tail = rp
	}

	if pt.cfg.DebugSchedCheck {
		pt.debugCheckQueues()
	}

	Logger.WithFields(logFields{"proc": int(rp), "priority": p.Priority}).Debug("ready")
	pt.pickProc()
}

// Unready removes rp from its priority's queue (spec.md §4.6). Kernel
// tasks are stack-guard-checked on every removal; a mismatch is a fatal
// kernel bug, not a recoverable condition, so it panics exactly as
// spec'd. Resets the process's scheduling state for its next
// activation and recomputes the ready-set winner if rp was it.
func (pt *ProcTable) Unready(rp ProcNr) {
	p := &pt.procs[rp]

	if p.Priv != nil && p.Priv.StackGuard != nil && *p.Priv.StackGuard != STACKGUARD {
		Logger.WithField("proc", int(rp)).Error("kernel task stack guard corrupted")
		panic("kcore: stack guard mismatch in unready")
	}

	q := pt.queue(p.Priority)
	prev := NoProc
	found := false
	for cur := q.Head; cur != NoProc; cur = pt.procs[cur].NextReady {
		if cur == rp {
			found = true
			if prev == NoProc {
				q.Head = pt.procs[cur].NextReady
			} else {
				pt.procs[prev].NextReady = pt.procs[cur].NextReady
			}
			if q.Tail == cur {
				q.Tail = prev
			}
			break
		}
		prev = cur
	}

	if pt.cfg.DebugSchedCheck {
		pt.debugCheckQueues()
	}

	if found && (rp == pt.ProcPtr || rp == pt.NextPtr) {
		pt.pickProc()
	}

	p.Priority = p.MaxPriority
	if pt.cfg.Quantums != nil {
		p.FullQuantums = pt.cfg.Quantums(p.Priority)
	}

	Logger.WithFields(logFields{"proc": int(rp), "priority": p.Priority}).Debug("unready")
}

// debugCheckQueues verifies the queues are acyclic and duplicate-free,
// the DEBUG_SCHED_CHECK knob from spec.md §6; a violation is a fatal
// kernel consistency bug.
func (pt *ProcTable) debugCheckQueues() {
	seen := make(map[ProcNr]bool)
	for q := 0; q < len(pt.ready); q++ {
		steps := 0
		for cur := pt.ready[q].Head; cur != NoProc; cur = pt.procs[cur].NextReady {
			if seen[cur] {
				Logger.WithField("proc", int(cur)).Error("process appears twice in ready queues")
				panic("kcore: DEBUG_SCHED_CHECK: duplicate queue membership")
			}
			seen[cur] = true
			steps++
			if steps > len(pt.procs)+1 {
				Logger.WithField("queue", q).Error("ready queue cycle detected")
				panic("kcore: DEBUG_SCHED_CHECK: cyclic ready queue")
			}
		}
	}
}
