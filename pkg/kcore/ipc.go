package kcore

import "time"

// Kernel ties the process table, notification pool, and scheduler
// metrics hook together and exposes the four IPC primitives plus the
// dispatcher in spec.md §4. It is the unit of re-entry the lock
// gateway (pkg/lockgate) brackets.
type Kernel struct {
	cfg   Config
	Procs *ProcTable
	Pool  *NotifyPool

	// Uptime supplies the timestamp for notifications from sources
	// other than HARDWARE/SYSTEM (spec.md §4.4). Overridable for tests.
	Uptime func() int64

	Metrics KernelMetrics

	sidMap []ProcNr
}

// SetSIDMap installs the dense-SID -> ProcNr mapping the (out of
// scope, externally provisioned) privilege database computes; without
// it, SID and ProcNr are assumed identical, which is adequate for the
// demo/test process tables where every process gets SID == ProcNr.
func (k *Kernel) SetSIDMap(m []ProcNr) { k.sidMap = m }

// KernelMetrics is the optional observation hook schedmetrics attaches
// to, kept as an interface so pkg/kcore never imports pkg/schedmetrics.
type KernelMetrics interface {
	DemotionCounter
	ObserveSysCall(fn CallFunction, status Status)
}

// NewKernel builds an empty kernel from cfg; callers populate the
// process table and privilege records (boot is out of scope per
// spec.md §1) before issuing calls. cfg.MessBodySize is checked
// against the build's fixed Message.Body layout (spec.md §6's
// MESS_SIZE is a compile-time constant, not a runtime parameter); a
// boot manifest naming a different size indicates it was built against
// a different wire layout than this binary implements.
func NewKernel(cfg Config) *Kernel {
	if cfg.MessBodySize != 0 && cfg.MessBodySize != MessBodySize {
		Logger.WithFields(logFields{"configured": cfg.MessBodySize, "built": MessBodySize}).Panic("kcore: Config.MessBodySize does not match this build's Message.Body layout")
	}
	return &Kernel{
		cfg:   cfg,
		Procs: NewProcTable(cfg),
		Pool:  NewNotifyPool(cfg.NRNotifyBufs),
		Uptime: func() int64 {
			return time.Now().UnixNano()
		},
	}
}

// Config exposes the kernel's geometry/policy for callers (demo
// harnesses, tests) that need it outside the package.
func (k *Kernel) Config() Config { return k.cfg }

func (k *Kernel) demotionCounter() DemotionCounter {
	if k.Metrics == nil {
		return nil
	}
	return k.Metrics
}

// MiniSend implements spec.md §4.2. caller is the sending process,
// dst its destination, msg the caller's message buffer.
func (k *Kernel) MiniSend(caller, dst ProcNr, msg *Message, flags uint32) Status {
	pt := k.Procs

	// Deadlock check: walk dst -> dst.sendto -> ... while SENDING.
	for cur := dst; ; {
		p := pt.Proc(cur)
		if p.RTSFlags&RTSSending == 0 {
			break
		}
		cur = p.SendTo
		if cur == caller {
			Logger.WithFields(logFields{"caller": int(caller), "dst": int(dst)}).Warn("send would deadlock")
			return ELOCKED
		}
	}

	dstP := pt.Proc(dst)
	if dstP.RTSFlags&RTSReceiving != 0 && dstP.RTSFlags&RTSSending == 0 &&
		(dstP.GetFrom == Any || dstP.GetFrom == caller) {
		*dstP.MessBuf = *msg
		dstP.MessBuf.Source = caller
		dstP.RTSFlags &^= RTSReceiving
		if dstP.Runnable() {
			pt.Ready(dst)
		}
		return OK
	}

	if flags&FlagNonBlocking != 0 {
		return ENOTREADY
	}

	callerP := pt.Proc(caller)
	callerP.MessBuf = msg
	callerP.SendTo = dst
	wasRunnable := callerP.Runnable()
	callerP.RTSFlags |= RTSSending
	if wasRunnable {
		pt.Unready(caller)
	}

	// Append to tail of dst.CallerQ (FIFO, spec.md §5 ordering law).
	callerP.QLink = NoProc
	if dstP.CallerQ == NoProc {
		dstP.CallerQ = caller
	} else {
		tail := dstP.CallerQ
		for pt.Proc(tail).QLink != NoProc {
			tail = pt.Proc(tail).QLink
		}
		pt.Proc(tail).QLink = caller
	}
	return OK
}

// MiniReceive implements spec.md §4.3.
func (k *Kernel) MiniReceive(caller, src ProcNr, msg *Message, flags uint32) Status {
	pt := k.Procs
	callerP := pt.Proc(caller)

	if callerP.RTSFlags&RTSSending != 0 {
		// A SENDREC whose send half blocked: spec.md §4.3 says
		// reception is "skipped entirely... left blocked only as
		// SENDING". Do not also set RECEIVING (invariant §3.4 allows
		// both bits together only once the send half has completed);
		// the dispatcher's sendRec defers this caller's actual receive
		// until mini_send's eventual delivery drains it out of the
		// destination's caller_q.
		return OK
	}

	if flags&FlagFreshAnswer == 0 && callerP.Priv != nil {
		if ok := k.tryPendingNotify(callerP, src, msg); ok {
			return OK
		}
	}

	if ok := k.tryCallerQueue(caller, src, msg); ok {
		return OK
	}

	return k.parkReceive(caller, src, msg, flags)
}

// tryPendingNotify scans the caller's pending bitmap for a deliverable
// source (spec.md §4.3 step 1, §5 ordering law #3). Within one word,
// lowest-bit-first; across words, lowest-index-first — Bitmap.NextSet
// already walks in that order.
func (k *Kernel) tryPendingNotify(callerP *Proc, src ProcNr, msg *Message) bool {
	priv := callerP.Priv

	if (src == Any || src == Hardware) && priv.hwPending {
		priv.hwPending = false
		k.buildNotification(priv, Hardware, msg)
		return true
	}
	if (src == Any || src == System) && priv.sysPending {
		priv.sysPending = false
		k.buildNotification(priv, System, msg)
		return true
	}

	bm := priv.SNotifyPending
	from := 0
	for {
		sid, ok := bm.NextSet(from)
		if !ok {
			return false
		}
		source := k.sidToProcNr(sid)
		if src == Any || source == src {
			bm.Clear(sid)
			k.buildNotification(priv, source, msg)
			return true
		}
		from = sid + 1
	}
}

// tryCallerQueue walks caller.CallerQ from the head (spec.md §4.3 step
// 2, FIFO ordering law #1).
func (k *Kernel) tryCallerQueue(caller, src ProcNr, msg *Message) bool {
	pt := k.Procs
	callerP := pt.Proc(caller)

	prev := NoProc
	for cur := callerP.CallerQ; cur != NoProc; cur = pt.Proc(cur).QLink {
		senderP := pt.Proc(cur)
		if src != Any && cur != src {
			prev = cur
			continue
		}

		*msg = *senderP.MessBuf
		msg.Source = cur

		if prev == NoProc {
			callerP.CallerQ = senderP.QLink
		} else {
			pt.Proc(prev).QLink = senderP.QLink
		}
		senderP.QLink = NoProc

		senderP.RTSFlags &^= RTSSending
		senderP.SendTo = NoProc

		if senderP.replyPending {
			// This sender's blocked half was a SENDREC's send; its send
			// has now completed, so it transitions straight into
			// waiting for the reply rather than becoming runnable
			// (DESIGN.md Open Question decision #5, invariant §3.4).
			senderP.replyPending = false
			k.MiniReceive(cur, caller, senderP.replyMsg, senderP.replyFlags)
		} else if senderP.Runnable() {
			pt.Ready(cur)
		}
		return true
	}
	return false
}

func (k *Kernel) parkReceive(caller, src ProcNr, msg *Message, flags uint32) Status {
	if flags&FlagNonBlocking != 0 {
		return ENOTREADY
	}
	pt := k.Procs
	callerP := pt.Proc(caller)
	callerP.GetFrom = src
	callerP.MessBuf = msg
	if callerP.Runnable() {
		pt.Unready(caller)
	}
	callerP.RTSFlags |= RTSReceiving
	return OK
}

// MiniAlert implements the alert half of spec.md §4.4: a non-blocking,
// kernel-synthesized notification whose body is derived from dst's
// pending-interrupt or pending-signal word.
func (k *Kernel) MiniAlert(caller, dst ProcNr) Status {
	pt := k.Procs
	dstP := pt.Proc(dst)
	priv := dstP.Priv

	if dstP.RTSFlags&RTSReceiving != 0 && dstP.RTSFlags&RTSSending == 0 &&
		(dstP.GetFrom == Any || dstP.GetFrom == caller) {
		k.buildNotification(priv, caller, dstP.MessBuf)
		dstP.RTSFlags &^= RTSReceiving
		if dstP.Runnable() {
			pt.Ready(dst)
		}
		return OK
	}

	if priv != nil {
		switch caller {
		case Hardware:
			priv.hwPending = true
		case System:
			priv.sysPending = true
		default:
			priv.SNotifyPending.Set(k.procNrToSID(caller))
		}
	}
	return OK
}

// MiniNotify implements the notify half of spec.md §4.4: a
// non-blocking, user-typed, coalescing notification from one ordinary
// process to another. HARDWARE/SYSTEM-sourced pending-word
// notifications are MiniAlert's concern, not this one's.
func (k *Kernel) MiniNotify(caller, dst ProcNr, msg *Message) Status {
	pt := k.Procs
	dstP := pt.Proc(dst)
	priv := dstP.Priv

	if dstP.RTSFlags&RTSReceiving != 0 && dstP.RTSFlags&RTSSending == 0 &&
		(dstP.GetFrom == Any || dstP.GetFrom == caller) {
		*dstP.MessBuf = *msg
		dstP.MessBuf.Source = caller
		dstP.RTSFlags &^= RTSReceiving
		if dstP.Runnable() {
			pt.Ready(dst)
		}
		return OK
	}

	if priv == nil {
		return ENOSPC
	}
	st := k.Pool.Upsert(priv, caller, msg.Type, int32(msg.NotifyFlags()), msg.NotifyArg())
	if st != OK {
		return st
	}
	priv.SNotifyPending.Set(k.procNrToSID(caller))
	return OK
}

// buildNotification assembles a synthetic notification message from
// source into msg, per spec.md §4.4: HARDWARE/HW and SYSTEM sources
// derive their payload from the destination's pending masks (cleared
// atomically with the build, i.e. under whatever lock gateway bracket
// the caller holds); any notify-pool entry coalesced for this source
// supplies the richer typed payload otherwise (DESIGN.md Open Question
// decision #1).
func (k *Kernel) buildNotification(priv *PrivEntry, source ProcNr, msg *Message) {
	switch source {
	case Hardware:
		arg := int32(priv.SIntPending)
		priv.SIntPending = 0
		msg.setNotify(source, 0, arg, arg, k.Uptime())
	case System:
		arg := int32(priv.SIGPending)
		priv.SIGPending = 0
		msg.setNotify(source, 0, arg, arg, k.Uptime())
	default:
		if typ, flags, arg, ok := k.Pool.PopForSource(priv, source); ok {
			msg.setNotify(source, 0, flags, arg, k.Uptime())
			msg.Type = typ
		} else {
			msg.setNotify(source, 0, 0, 0, k.Uptime())
		}
	}
}

// sidToProcNr/procNrToSID translate between the privilege database's
// dense system IDs and process table slots. The privilege database's
// provisioning is out of scope (spec.md §1); this kernel is handed the
// mapping at boot via SetSIDMap.
func (k *Kernel) sidToProcNr(sid int) ProcNr {
	if k.sidMap == nil {
		return ProcNr(sid)
	}
	return k.sidMap[sid]
}

func (k *Kernel) procNrToSID(p ProcNr) int {
	if pr := k.Procs.Proc(p).Priv; pr != nil {
		return pr.SID
	}
	return int(p)
}
