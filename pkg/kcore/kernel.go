package kcore

// Sched is the Kernel-level entry point for spec.md §4.7, wiring the
// process table's scheduling logic to the optional metrics hook.
func (k *Kernel) Sched(rp ProcNr) {
	k.Procs.Sched(rp, k.demotionCounter())
}

// Ready and Unready expose spec.md §4.5/§4.6 directly; most callers go
// through the IPC primitives or Sched, but boot code and lock gateways
// (pkg/lockgate) call these when re-entering from outside a trap.
func (k *Kernel) Ready(rp ProcNr)   { k.Procs.Ready(rp) }
func (k *Kernel) Unready(rp ProcNr) { k.Procs.Unready(rp) }

// PickWinner exposes pick_proc's post-state for introspection/tests.
func (k *Kernel) PickWinner() ProcNr { return k.Procs.NextPtr }
