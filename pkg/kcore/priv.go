package kcore

// PrivEntry is a privilege record, consumed read-only during IPC
// (spec.md §3). The privilege database itself — provisioning send
// masks, call masks, and dense system IDs — is out of scope (spec.md
// §1); what lands here is the one-shot pass that turns a descriptor
// table into the PrivEntry array, the same forward-scan-over-a-table
// shape as the teacher's adaptToKernelVersion in pkg/linux/init.go.
type PrivEntry struct {
	SID int

	SFlags     uint32
	SCallMask  uint32 // bit i set => CallFunction(i) permitted
	SSendMask  Bitmap // bit i set => SID i is a legal destination

	SNotifyPending Bitmap // presence bitmap, keyed by source SID

	// hwPending/sysPending are the HARDWARE/SYSTEM presence bits.
	// These pseudo-sources aren't seated in the process table and so
	// have no dense SID of their own to occupy a bit in
	// SNotifyPending; they get dedicated flags instead.
	hwPending  bool
	sysPending bool

	SIntPending uint32
	SIGPending  uint32

	StackGuard *uint32

	// p_ntf_q: head/tail of this destination's typed-notification
	// list in the notification pool, by pool slot index.
	ntfHead int
	ntfTail int
}

// PrivDescriptor is the provisioning input for one process: which
// system calls it may issue, and which dense SIDs it may send to.
type PrivDescriptor struct {
	SID        int
	SFlags     uint32
	CallMask   uint32
	SendMaskOf func(sid int) bool
	NumSIDs    int
}

// ProvisionPrivileges computes the PrivEntry array from a descriptor
// table in a single forward pass, mirroring adaptToKernelVersion's
// "scan a table once at init, fill in derived flags" idiom.
func ProvisionPrivileges(cfg Config, descs []PrivDescriptor) []*PrivEntry {
	out := make([]*PrivEntry, len(descs))
	for i, d := range descs {
		guard := stackGuardValue
		pe := &PrivEntry{
			SID:            d.SID,
			SFlags:         d.SFlags,
			SCallMask:      d.CallMask,
			SSendMask:      NewBitmap(d.NumSIDs),
			SNotifyPending: NewBitmap(d.NumSIDs),
			StackGuard:     &guard,
			ntfHead:        -1,
			ntfTail:        -1,
		}
		for sid := 0; sid < d.NumSIDs; sid++ {
			if d.SendMaskOf != nil && d.SendMaskOf(sid) {
				pe.SSendMask.Set(sid)
			}
		}
		out[i] = pe
	}
	return out
}

// stackGuardValue is the canary every kernel-task PrivEntry gets
// stamped with; unready() panics if it ever reads back differently.
const STACKGUARD uint32 = 0xBEEFCAFE

var stackGuardValue = STACKGUARD

// CanCall reports whether fn is in this privilege's call mask.
func (p *PrivEntry) CanCall(fn CallFunction) bool {
	return p.SCallMask&(1<<uint(fn)) != 0
}

// CanSendTo reports whether destSID is in this privilege's send mask.
func (p *PrivEntry) CanSendTo(destSID int) bool {
	if destSID < 0 || destSID >= len(p.SSendMask)*64 {
		return false
	}
	return p.SSendMask.Test(destSID)
}
