package kcore

// Sched is called when rp has used up its current quantum (spec.md
// §4.7). Non-preemptible processes are left alone. Quantum accounting
// decays priority on exhaustion; round-robin rotates a still-head
// process to the tail of its own queue afterward, regardless of how it
// got to the head (DESIGN.md Open Question decision #2: rotation
// after an RDY_Q_HEAD insert is intentional, not a bug to special-case
// around).
//
// The demotion step relocates rp to its new, lower-priority queue via
// dequeueFromQueue/Ready rather than the public Unready, because
// Unready's "reset to MaxPriority on departure" step (spec.md §4.6) is
// specifically the blocking/unblocking lifecycle behavior and would
// erase the very decay sched() exists to apply if reused here
// (DESIGN.md Open Question decision #4).
func (pt *ProcTable) Sched(rp ProcNr, demotions DemotionCounter) {
	p := &pt.procs[rp]
	if p.Priv == nil || p.Priv.SFlags&SFlagPreemptible == 0 {
		return
	}

	p.FullQuantums--
	if p.FullQuantums <= 0 && p.Priority+1 < pt.cfg.IdleQ {
		pt.dequeueFromQueue(rp)
		p.Priority++
		pt.Ready(rp)
		if pt.cfg.Quantums != nil {
			p.FullQuantums = pt.cfg.Quantums(p.Priority)
		}
		if demotions != nil {
			demotions.Inc(p.Priority)
		}
		Logger.WithFields(logFields{"proc": int(rp), "priority": p.Priority}).Debug("priority demoted on quantum exhaustion")
	}

	q := pt.queue(p.Priority)
	if q.Head == rp && q.Tail != rp {
		// Rotate head -> tail.
		q.Head = p.NextReady
		p.NextReady = NoProc
		pt.procs[q.Tail].NextReady = rp
		q.Tail = rp
	}

	p.SchedTicks = p.QuantumSize
	pt.pickProc()
}

// dequeueFromQueue unlinks rp from its current priority queue without
// touching its scheduling fields (priority/quantum), the mechanical
// half of Unready used internally when relocating a process between
// priority levels rather than parking it off the scheduler entirely.
func (pt *ProcTable) dequeueFromQueue(rp ProcNr) {
	p := &pt.procs[rp]
	q := pt.queue(p.Priority)
	prev := NoProc
	for cur := q.Head; cur != NoProc; cur = pt.procs[cur].NextReady {
		if cur == rp {
			if prev == NoProc {
				q.Head = pt.procs[cur].NextReady
			} else {
				pt.procs[prev].NextReady = pt.procs[cur].NextReady
			}
			if q.Tail == cur {
				q.Tail = prev
			}
			return
		}
		prev = cur
	}
}

// DemotionCounter lets callers (schedmetrics) observe quantum-driven
// priority decay without the scheduler importing the metrics package.
type DemotionCounter interface {
	Inc(newPriority int)
}
