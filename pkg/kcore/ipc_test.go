package kcore

import "testing"

// TestMiniSend_RendezvousWhenReceiverWaiting covers spec.md §8's
// rendezvous scenario: B already blocked in RECEIVE(A) when A sends,
// so the message is copied directly and neither side ever queues.
func TestMiniSend_RendezvousWhenReceiverWaiting(t *testing.T) {
	k := testKernel(2, nil)
	const a, b ProcNr = 0, 1

	var got Message
	if st := k.MiniReceive(b, a, &got, 0); st != OK {
		t.Fatalf("MiniReceive: %v", st)
	}
	if k.Procs.Proc(b).RTSFlags&RTSReceiving == 0 {
		t.Fatal("sanity: B should be parked receiving")
	}

	msg := Message{Type: 42}
	if st := k.MiniSend(a, b, &msg, 0); st != OK {
		t.Fatalf("MiniSend: %v", st)
	}

	if got.Source != a || got.Type != 42 {
		t.Fatalf("B's buffer = %+v, want source=%d type=42", got, a)
	}
	if k.Procs.Proc(b).RTSFlags&RTSReceiving != 0 {
		t.Fatal("B still marked receiving after rendezvous")
	}
	if k.Procs.Proc(a).RTSFlags != 0 {
		t.Fatal("A should never have blocked")
	}
}

// TestMiniSend_QueuedSendersServedFIFO covers spec.md §8's queued-
// senders scenario: C and D both send to A before A receives; A must
// see C first (arrival order), not D.
func TestMiniSend_QueuedSendersServedFIFO(t *testing.T) {
	k := testKernel(3, nil)
	const dst, c, d ProcNr = 0, 1, 2

	mc := Message{Type: 1}
	md := Message{Type: 2}
	if st := k.MiniSend(c, dst, &mc, 0); st != OK {
		t.Fatalf("C send: %v", st)
	}
	if st := k.MiniSend(d, dst, &md, 0); st != OK {
		t.Fatalf("D send: %v", st)
	}

	var got Message
	if st := k.MiniReceive(dst, Any, &got, 0); st != OK {
		t.Fatalf("receive: %v", st)
	}
	if got.Source != c || got.Type != 1 {
		t.Fatalf("first receive = %+v, want from C (arrived first)", got)
	}

	if st := k.MiniReceive(dst, Any, &got, 0); st != OK {
		t.Fatalf("second receive: %v", st)
	}
	if got.Source != d || got.Type != 2 {
		t.Fatalf("second receive = %+v, want from D", got)
	}
}

// TestMiniAlert_Coalescing covers spec.md §8's alert-coalescing
// scenario: two hardware alerts before the target receives collapse
// into a single pending bit, OR-accumulated into one pending word.
func TestMiniAlert_Coalescing(t *testing.T) {
	k := testKernel(1, nil)
	const dst ProcNr = 0
	priv := k.Procs.Proc(dst).Priv
	priv.SIntPending = 0x1

	if st := k.MiniAlert(Hardware, dst); st != OK {
		t.Fatalf("first alert: %v", st)
	}
	priv.SIntPending |= 0x6
	if st := k.MiniAlert(Hardware, dst); st != OK {
		t.Fatalf("second alert: %v", st)
	}
	if !priv.hwPending {
		t.Fatal("hwPending should be set after two alerts")
	}

	var got Message
	if st := k.MiniReceive(dst, Any, &got, 0); st != OK {
		t.Fatalf("receive: %v", st)
	}
	if got.Source != Hardware {
		t.Fatalf("source = %v, want Hardware", got.Source)
	}
	if got.NotifyArg() != 0x7 {
		t.Fatalf("NotifyArg = %#x, want 0x7 (OR-accumulated)", got.NotifyArg())
	}
	if priv.hwPending {
		t.Fatal("hwPending should clear on delivery")
	}
}

// TestMiniNotify_OverwriteKeepsLatestArg covers spec.md §8's notify-
// overwrite scenario: a second NOTIFY from the same source before
// delivery replaces the pending payload rather than queuing a second
// entry.
func TestMiniNotify_OverwriteKeepsLatestArg(t *testing.T) {
	k := testKernel(2, nil)
	const src, dst ProcNr = 0, 1

	var m1, m2 Message
	m1.Type = 7
	m1.SetNotifyPayload(0, 1)
	m2.Type = 7
	m2.SetNotifyPayload(0, 2)

	if st := k.MiniNotify(src, dst, &m1); st != OK {
		t.Fatalf("first notify: %v", st)
	}
	if st := k.MiniNotify(src, dst, &m2); st != OK {
		t.Fatalf("second notify: %v", st)
	}
	if got, want := k.Pool.Used(), 1; got != want {
		t.Fatalf("pool Used() = %d, want %d (overwrite, not a second entry)", got, want)
	}

	var got Message
	if st := k.MiniReceive(dst, Any, &got, 0); st != OK {
		t.Fatalf("receive: %v", st)
	}
	if got.NotifyArg() != 2 {
		t.Fatalf("NotifyArg = %d, want 2 (latest notify wins)", got.NotifyArg())
	}
}

// TestMiniSend_DeadlockDetected covers spec.md §8's deadlock scenario:
// A sends to B while B is already blocked sending to A. A must be
// rejected with ELOCKED and stay runnable; B remains blocked.
func TestMiniSend_DeadlockDetected(t *testing.T) {
	k := testKernel(2, nil)
	const a, b ProcNr = 0, 1

	mb := Message{Type: 1}
	if st := k.MiniSend(b, a, &mb, 0); st != OK {
		t.Fatalf("B send: %v", st)
	}
	if k.Procs.Proc(b).RTSFlags&RTSSending == 0 {
		t.Fatal("sanity: B should be blocked sending")
	}

	ma := Message{Type: 2}
	st := k.MiniSend(a, b, &ma, 0)
	if st != ELOCKED {
		t.Fatalf("A send = %v, want ELOCKED", st)
	}
	if k.Procs.Proc(a).RTSFlags != 0 {
		t.Fatal("A should remain runnable after a rejected send")
	}
	if k.Procs.Proc(b).RTSFlags&RTSSending == 0 {
		t.Fatal("B should remain blocked sending")
	}
}

// TestSendRec_ReplyIsFresh covers spec.md §8's SENDREC-freshness
// scenario: the reply a SENDREC receives must come from the peer it
// sent to, not a notification that happened to be pending first.
func TestSendRec_ReplyIsFresh(t *testing.T) {
	k := testKernel(2, nil)
	const caller, peer ProcNr = 0, 1

	// A notification from peer is already pending before the send.
	var pending Message
	pending.Type = 99
	pending.SetNotifyPayload(0, 0)
	if st := k.MiniNotify(peer, caller, &pending); st != OK {
		t.Fatalf("priming notify: %v", st)
	}

	msg := Message{Type: 1}
	if st := k.sendRec(caller, k.Procs.Proc(caller), peer, &msg, 0); st != OK {
		t.Fatalf("sendRec (send half): %v", st)
	}
	if k.Procs.Proc(caller).RTSFlags&RTSSending == 0 {
		t.Fatal("sanity: caller should be blocked on the send half (peer not yet receiving)")
	}

	// peer drains the blocked send; this completes the caller's send
	// half and, per the replyPending continuation, parks it receiving
	// from peer for the reply -- reusing the same buffer (msg).
	var peerMsg Message
	if st := k.MiniReceive(peer, caller, &peerMsg, 0); st != OK {
		t.Fatalf("peer receiving caller's send: %v", st)
	}
	if peerMsg.Source != caller || peerMsg.Type != 1 {
		t.Fatalf("peer's received message = %+v, want source=%d type=1", peerMsg, caller)
	}
	if k.Procs.Proc(caller).RTSFlags&RTSReceiving == 0 {
		t.Fatal("sanity: caller should now be parked receiving its reply")
	}

	reply := Message{Type: 5}
	if st := k.MiniSend(peer, caller, &reply, 0); st != OK {
		t.Fatalf("peer sending the reply: %v", st)
	}

	if msg.Source != peer {
		t.Fatalf("reply source = %v, want %v (peer), not the stale pending notify", msg.Source, peer)
	}
	if msg.Type != 5 {
		t.Fatalf("reply type = %d, want 5 (peer's reply), not 99 (stale notify)", msg.Type)
	}
}

// TestMiniSend_NonBlockingNeverSuspends covers spec.md §8's non-
// blocking law: a SEND with FlagNonBlocking whose peer isn't ready to
// receive returns ENOTREADY immediately and leaves rts_flags alone.
func TestMiniSend_NonBlockingNeverSuspends(t *testing.T) {
	k := testKernel(2, nil)
	const a, b ProcNr = 0, 1

	msg := Message{Type: 1}
	st := k.MiniSend(a, b, &msg, FlagNonBlocking)
	if st != ENOTREADY {
		t.Fatalf("MiniSend = %v, want ENOTREADY", st)
	}
	if k.Procs.Proc(a).RTSFlags != 0 {
		t.Fatal("A must not have been suspended by a non-blocking send")
	}
}
