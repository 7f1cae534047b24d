/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// kcorestat is a one-shot tool: it boots a small demo process table of
// its own (four processes, all at priority IdleQ-1, every process
// allowed to send to every SID; no IDLE process), runs a single named
// scenario, and logs a summary --
// the cmd/get/main.go shape (one logrus.Fatalf on error, one
// logrus.Infof summary line on success), applied to the scheduler
// core instead of an HTTP GET.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Kihui/minix/pkg/kcore"
)

func main() {
	name := "rendezvous"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	k := newDemoKernel()

	switch name {
	case "rendezvous":
		var m kcore.Message
		st := k.MiniReceive(2, kcore.Any, &m, 0)
		st2 := k.MiniSend(1, 2, &kcore.Message{Type: 1}, 0)
		logrus.Infof("rendezvous: receive=%v send=%v m_source=%d", st, st2, int(m.Source))
	case "deadlock":
		st1 := k.MiniSend(1, 2, &kcore.Message{}, 0)
		st2 := k.MiniSend(2, 1, &kcore.Message{}, 0)
		logrus.Infof("deadlock: A.send=%v B.send=%v (expect ELOCKED for the second)", st1, st2)
	default:
		logrus.Fatalf("unknown scenario %q", name)
	}
}

func newDemoKernel() *kcore.Kernel {
	cfg := kcore.DefaultConfig()
	cfg.NRProcs = 4
	k := kcore.NewKernel(cfg)

	descs := make([]kcore.PrivDescriptor, cfg.NRProcs)
	for i := range descs {
		descs[i] = kcore.PrivDescriptor{
			SID:      i,
			SFlags:   kcore.SFlagPreemptible | kcore.SFlagBillable,
			CallMask: 1<<kcore.CallSend | 1<<kcore.CallReceive | 1<<kcore.CallSendRec | 1<<kcore.CallNotify | 1<<kcore.CallAlert,
			NumSIDs:  cfg.NRProcs,
			SendMaskOf: func(sid int) bool {
				return true
			},
		}
	}
	privs := kcore.ProvisionPrivileges(cfg, descs)
	for i, p := range privs {
		nr := kcore.ProcNr(i)
		k.Procs.SetEmpty(nr, false)
		k.Procs.Proc(nr).Priv = p
		k.Procs.Proc(nr).MaxPriority = cfg.IdleQ - 1
		k.Procs.Proc(nr).Priority = cfg.IdleQ - 1
		k.Procs.Proc(nr).FullQuantums = cfg.Quantums(cfg.IdleQ - 1)
		k.Ready(nr)
	}
	return k
}
