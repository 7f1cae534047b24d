package kcore

// SysCall is the single entry point the trap/interrupt stubs (out of
// scope, spec.md §1) hand every IPC trap to: sys_call(call_nr, peer,
// message_ptr) (spec.md §4.1). msgAddr/msgLen stand in for the
// click-granularity address check the real kernel does against the
// caller's data segment before it ever dereferences message_ptr; msg
// is the already-resolved Go value the trap stub would have mapped
// that address to. decode order and rejection order follow §4.1
// exactly: call-permitted, peer-valid, buffer-range, send-mask.
func (k *Kernel) SysCall(caller ProcNr, callNr int, peer ProcNr, msgAddr ProcAddr, msgLen int, msg *Message) Status {
	fn, flags := decodeCall(callNr)
	pt := k.Procs
	callerP := pt.Proc(caller)

	status := k.validateCall(caller, callerP, fn, peer, msgAddr, msgLen)
	if status != OK {
		k.observe(fn, status)
		return status
	}

	var result Status
	switch fn {
	case CallSend:
		result = k.MiniSend(caller, peer, msg, flags)
	case CallReceive:
		result = k.MiniReceive(caller, peer, msg, flags)
	case CallSendRec:
		result = k.sendRec(caller, callerP, peer, msg, flags)
	case CallNotify:
		result = k.MiniNotify(caller, peer, msg)
	case CallAlert:
		result = k.MiniAlert(caller, peer)
	case CallEcho:
		// Intra-process loopback: the kernel's own answer to "is the
		// trap path alive", never touches another process's state.
		msg.Source = caller
		result = OK
	default:
		Logger.WithFields(logFields{"caller": int(caller), "call": callNr}).Warn("unknown call function")
		result = EBADCALL
	}

	k.observe(fn, result)
	return result
}

// validateCall runs the four checks that precede any routing: call
// permission (plus the kernel-task-must-use-SENDREC rule), peer
// validity, the message-buffer range, and, for SEND/SENDREC/NOTIFY/ALERT,
// the send-mask check against the destination's dense SID followed by
// the destination-slot liveness check (EDEADDST).
func (k *Kernel) validateCall(caller ProcNr, callerP *Proc, fn CallFunction, peer ProcNr, msgAddr ProcAddr, msgLen int) Status {
	pt := k.Procs

	if callerP.Priv == nil || !callerP.Priv.CanCall(fn) {
		Logger.WithFields(logFields{"caller": int(caller), "fn": int(fn)}).Warn("call not permitted by s_call_mask")
		return ECALLDENIED
	}

	if fn != CallEcho {
		if peer == Any || peer == Hardware || peer == System {
			if fn != CallReceive {
				Logger.WithFields(logFields{"caller": int(caller), "fn": int(fn)}).Warn("ANY/HARDWARE/SYSTEM are only legal as a RECEIVE source filter")
				return EBADSRCDST
			}
		} else if peer < 0 || int(peer) >= pt.NRProcs() {
			Logger.WithFields(logFields{"caller": int(caller), "peer": int(peer)}).Warn("peer is not a valid process number")
			return EBADSRCDST
		} else if peerPriv := pt.Proc(peer).Priv; peerPriv != nil && peerPriv.SFlags&SFlagKernelTask != 0 && fn != CallSendRec {
			Logger.WithFields(logFields{"caller": int(caller), "peer": int(peer), "fn": int(fn)}).Warn("kernel task must be addressed via SENDREC")
			return ECALLDENIED
		}
	}

	if fn != CallAlert && !checkMsgRange(callerP, msgAddr, msgLen) {
		Logger.WithFields(logFields{"caller": int(caller), "fn": int(fn)}).Warn("message buffer outside caller's data region")
		return EFAULT
	}

	if isSendingCall(fn) && peer != Any && peer >= 0 {
		destSID := k.procNrToSID(peer)
		if !callerP.Priv.CanSendTo(destSID) {
			Logger.WithFields(logFields{"caller": int(caller), "peer": int(peer)}).Warn("destination not in s_send_mask")
			return ECALLDENIED
		}
		if pt.IsEmpty(peer) {
			Logger.WithFields(logFields{"caller": int(caller), "peer": int(peer)}).Warn("destination slot is empty")
			return EDEADDST
		}
	}

	return OK
}

// isSendingCall reports whether fn transports a message toward peer,
// and therefore needs the s_send_mask check (spec.md §4.1 step 4).
func isSendingCall(fn CallFunction) bool {
	switch fn {
	case CallSend, CallSendRec, CallNotify, CallAlert:
		return true
	default:
		return false
	}
}

// checkMsgRange reports whether [addr, addr+length) lies inside the
// caller's configured data region. A zero MemLen means the caller
// opted out of the check (tests exercising IPC semantics directly,
// with no simulated address space).
func checkMsgRange(p *Proc, addr ProcAddr, length int) bool {
	if p.MemLen == 0 {
		return true
	}
	end := addr + ProcAddr(length)
	return addr >= p.MemVir && end <= p.MemVir+p.MemLen && end >= addr
}

// sendRec implements the SENDREC routing of spec.md §4.1: mini_send
// followed by mini_receive with FRESH_ANSWER, except when the send
// blocks — reception is then deferred to whichever mini_receive later
// drains this caller's entry out of the destination's caller_q
// (DESIGN.md Open Question decision #5).
func (k *Kernel) sendRec(caller ProcNr, callerP *Proc, peer ProcNr, msg *Message, flags uint32) Status {
	st := k.MiniSend(caller, peer, msg, flags)
	if st != OK {
		return st
	}
	if callerP.RTSFlags&RTSSending != 0 {
		callerP.replyPending = true
		callerP.replyMsg = msg
		callerP.replyFlags = FlagFreshAnswer
		return OK
	}
	return k.MiniReceive(caller, peer, msg, FlagFreshAnswer)
}

func (k *Kernel) observe(fn CallFunction, status Status) {
	if k.Metrics != nil {
		k.Metrics.ObserveSysCall(fn, status)
	}
}
