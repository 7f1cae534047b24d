package kcore

// ntfBuf is one entry of the typed-notification pool backing a
// destination's p_ntf_q (spec.md §4.4 slow path). Linked per
// destination through next; free slots are tracked by a Bitmap
// allocator, the fixed-pool-with-bit-allocator shape informed by the
// queue-runner/uring examples surveyed in DESIGN.md (no teacher file
// shows a pool allocator directly).
type ntfBuf struct {
	inUse  bool
	source ProcNr
	typ    int32
	flags  int32
	arg    int32
	next   int
}

// NotifyPool is the fixed-size, bit-allocated pool of NR_NOTIFY_BUFS
// typed notification buffers shared by every destination.
type NotifyPool struct {
	bufs  []ntfBuf
	free  Bitmap
	total int
}

// NewNotifyPool allocates n buffers, all initially free.
func NewNotifyPool(n int) *NotifyPool {
	np := &NotifyPool{
		bufs:  make([]ntfBuf, n),
		free:  NewBitmap(n),
		total: n,
	}
	for i := 0; i < n; i++ {
		np.free.Set(i)
	}
	return np
}

// Used reports how many buffers are currently allocated, for
// schedmetrics' pool-occupancy gauge.
func (np *NotifyPool) Used() int { return np.total - np.free.Count() }
func (np *NotifyPool) Total() int { return np.total }

func (np *NotifyPool) alloc() (int, bool) {
	idx, ok := np.free.NextSet(0)
	if !ok {
		return 0, false
	}
	np.free.Clear(idx)
	return idx, true
}

func (np *NotifyPool) release(idx int) {
	np.bufs[idx] = ntfBuf{}
	np.free.Set(idx)
}

// Upsert coalesces into an existing (source, type) entry on dst's
// p_ntf_q if one exists (overwriting flags/arg, per spec.md §4.4's
// coalescing rule), otherwise allocates a fresh slot and appends it to
// the tail. Returns ENOSPC when the pool is exhausted and no entry
// coalesces.
func (np *NotifyPool) Upsert(dst *PrivEntry, source ProcNr, typ, flags, arg int32) Status {
	for cur := dst.ntfHead; cur != -1; cur = np.bufs[cur].next {
		b := &np.bufs[cur]
		if b.source == source && b.typ == typ {
			b.flags = flags
			b.arg = arg
			return OK
		}
	}

	idx, ok := np.alloc()
	if !ok {
		return ENOSPC
	}
	np.bufs[idx] = ntfBuf{inUse: true, source: source, typ: typ, flags: flags, arg: arg, next: -1}
	if dst.ntfHead == -1 {
		dst.ntfHead = idx
		dst.ntfTail = idx
	} else {
		np.bufs[dst.ntfTail].next = idx
		dst.ntfTail = idx
	}
	return OK
}

// PopForSource removes and returns the first p_ntf_q entry on dst whose
// source matches, releasing its pool slot. Used by mini_receive's
// bitmap-delivery step to enrich a presence bit with its stored
// type/flags/arg payload (DESIGN.md Open Question decision #1).
func (np *NotifyPool) PopForSource(dst *PrivEntry, source ProcNr) (typ, flags, arg int32, ok bool) {
	prev := -1
	for cur := dst.ntfHead; cur != -1; cur = np.bufs[cur].next {
		b := &np.bufs[cur]
		if b.source == source {
			if prev == -1 {
				dst.ntfHead = b.next
			} else {
				np.bufs[prev].next = b.next
			}
			if dst.ntfTail == cur {
				dst.ntfTail = prev
			}
			typ, flags, arg = b.typ, b.flags, b.arg
			np.release(cur)
			return typ, flags, arg, true
		}
		prev = cur
	}
	return 0, 0, 0, false
}
