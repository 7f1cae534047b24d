package kcore

// Proc is one process slot, addressable by ProcNr. Field names follow
// spec.md §3 directly (rts_flags -> RTSFlags, caller_q -> CallerQ, and
// so on), since the spec's data model is itself the contract under
// test, not an implementation detail to rename away.
type Proc struct {
	RTSFlags uint32

	Priority    int
	MaxPriority int

	FullQuantums int
	SchedTicks   int
	QuantumSize  int

	MessBuf *Message
	GetFrom ProcNr
	SendTo  ProcNr

	// CallerQ is the head of a singly linked list (through QLink) of
	// other processes blocked sending to this one.
	CallerQ ProcNr
	QLink   ProcNr

	// NextReady links this slot into its priority's ready queue.
	NextReady ProcNr

	Priv *PrivEntry

	// MemVir/MemLen describe the valid range for a message buffer
	// address handed to sys_call, the click-granularity stand-in for
	// spec.md §4.1 step 3 ("the bytes starting at message_ptr must lie
	// inside the caller's data or stack-gap region"). Populated by the
	// (out of scope) process manager at boot; zero-value MemLen means
	// "unchecked", used by tests that don't model an address space.
	MemVir ProcAddr
	MemLen ProcAddr

	// replyPending/replyMsg/replyFlags carry a SENDREC
	// caller's deferred receive across a blocked send (DESIGN.md Open
	// Question decision #5): set by the dispatcher when mini_send
	// blocks, consumed by whichever mini_receive later drains this
	// process's caller_q entry.
	replyPending bool
	replyMsg     *Message
	replyFlags   uint32

	// empty marks a slot with no live process; only the process
	// manager would normally flip this, but the core needs to observe
	// it read-only per spec.md §3 Lifecycle.
	empty bool
}

// ProcAddr is a simulated virtual address/length, standing in for the
// click-granularity address-space bookkeeping a real trap entry would
// already have resolved before calling into sys_call.
type ProcAddr uintptr

// Runnable reports whether the process belongs on a ready queue.
func (p *Proc) Runnable() bool { return p.RTSFlags == 0 }

// ProcTable is the static array of process slots plus the per-priority
// ready set and the next-to-run pointers computed by pick_proc.
type ProcTable struct {
	cfg   Config
	procs []Proc

	ready []struct{ Head, Tail ProcNr }

	NextPtr ProcNr
	BillPtr ProcNr
	ProcPtr ProcNr // currently running process, set by the caller
}

// NewProcTable allocates NRProcs empty slots and an NR_SCHED_QUEUES
// ready set, all queues empty.
func NewProcTable(cfg Config) *ProcTable {
	pt := &ProcTable{
		cfg:   cfg,
		procs: make([]Proc, cfg.NRProcs),
		ready: make([]struct{ Head, Tail ProcNr }, cfg.NRSchedQueues),
	}
	for i := range pt.procs {
		pt.procs[i].empty = true
		pt.procs[i].GetFrom = NoProc
		pt.procs[i].SendTo = NoProc
		pt.procs[i].CallerQ = NoProc
		pt.procs[i].QLink = NoProc
		pt.procs[i].NextReady = NoProc
	}
	for i := range pt.ready {
		pt.ready[i].Head = NoProc
		pt.ready[i].Tail = NoProc
	}
	pt.NextPtr = NoProc
	pt.BillPtr = NoProc
	pt.ProcPtr = NoProc
	return pt
}

// Proc returns a pointer to the slot for nr. Panics on an out-of-range
// slot number, the same defensive posture as an array index in C: this
// is a kernel-internal invariant violation, not a recoverable input
// error (validated input never reaches here — sys_call validates
// peers before any Proc lookup).
func (pt *ProcTable) Proc(nr ProcNr) *Proc {
	return &pt.procs[nr]
}

// IsEmpty reports whether the slot holds a live process. Process
// creation/destruction lives in the process manager, out of scope here;
// this core only observes the flag.
func (pt *ProcTable) IsEmpty(nr ProcNr) bool {
	if nr < 0 || int(nr) >= len(pt.procs) {
		return true
	}
	return pt.procs[nr].empty
}

// SetEmpty lets a boot/test harness populate or retire a slot.
func (pt *ProcTable) SetEmpty(nr ProcNr, empty bool) {
	pt.procs[nr].empty = empty
}

func (pt *ProcTable) queue(priority int) *struct{ Head, Tail ProcNr } {
	return &pt.ready[priority]
}

// NRProcs, NRSchedQueues and IdleQ expose the table's geometry for
// callers outside the package (dispatch, metrics).
func (pt *ProcTable) NRProcs() int       { return len(pt.procs) }
func (pt *ProcTable) NRSchedQueues() int { return len(pt.ready) }
func (pt *ProcTable) IdleQ() int         { return pt.cfg.IdleQ }

// QueueDepth counts the members of priority q's ready queue, walking
// NextReady links — used by schedmetrics, not by the hot IPC path.
func (pt *ProcTable) QueueDepth(q int) int {
	n := 0
	for cur := pt.ready[q].Head; cur != NoProc; cur = pt.procs[cur].NextReady {
		n++
	}
	return n
}

// BlockedSenders counts the live processes currently parked with
// RTSSending set, i.e. sitting on some destination's CallerQ — used by
// schedmetrics' minix_blocked_senders gauge.
func (pt *ProcTable) BlockedSenders() int {
	n := 0
	for i := range pt.procs {
		if !pt.procs[i].empty && pt.procs[i].RTSFlags&RTSSending != 0 {
			n++
		}
	}
	return n
}

// NotifyPendingBits sums the set bits across every live process's
// SNotifyPending bitmap — used by schedmetrics' minix_notify_pending_bits
// gauge.
func (pt *ProcTable) NotifyPendingBits() int {
	n := 0
	for i := range pt.procs {
		if pt.procs[i].empty || pt.procs[i].Priv == nil {
			continue
		}
		n += pt.procs[i].Priv.SNotifyPending.Count()
	}
	return n
}
