/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// kcoresim boots a small demo process table and drives it through the
// scheduler/IPC scenarios, logging each step, while serving a
// Prometheus /metrics endpoint and an introspect debug listener --
// the same wiring shape as exporter_example1, applied to the
// scheduler core instead of a single hallucinated TCP connection.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kihui/minix/pkg/introspect"
	"github.com/Kihui/minix/pkg/kcore"
	"github.com/Kihui/minix/pkg/schedmetrics"
)

// Demo process numbers.
const (
	idleProc ProcNr = 0
	procA    ProcNr = 1
	procB    ProcNr = 2
	procC    ProcNr = 3
	procD    ProcNr = 4
	procP    ProcNr = 5
	procQ    ProcNr = 6
	numDemoProcs    = 7
)

type ProcNr = kcore.ProcNr

func buildKernel() *kcore.Kernel {
	cfg := kcore.DefaultConfig()
	cfg.NRProcs = numDemoProcs
	k := kcore.NewKernel(cfg)

	descs := make([]kcore.PrivDescriptor, numDemoProcs)
	for i := range descs {
		i := i
		descs[i] = kcore.PrivDescriptor{
			SID:      i,
			SFlags:   kcore.SFlagPreemptible | kcore.SFlagBillable,
			CallMask: 1<<kcore.CallSend | 1<<kcore.CallReceive | 1<<kcore.CallSendRec | 1<<kcore.CallNotify | 1<<kcore.CallAlert | 1<<kcore.CallEcho,
			NumSIDs:  numDemoProcs,
			SendMaskOf: func(sid int) bool {
				return sid != i // every demo process may send to every other
			},
		}
	}
	// IDLE is not preemptible, so sched() never demotes it. It stays in
	// every other process's send mask; no scenario sends to it.
	descs[idleProc].SFlags = kcore.SFlagBillable

	privs := kcore.ProvisionPrivileges(cfg, descs)
	sidMap := make([]ProcNr, numDemoProcs)
	for i, p := range privs {
		nr := ProcNr(i)
		k.Procs.SetEmpty(nr, false)
		k.Procs.Proc(nr).Priv = p
		k.Procs.Proc(nr).MaxPriority = cfg.IdleQ - 1
		k.Procs.Proc(nr).Priority = cfg.IdleQ - 1
		k.Procs.Proc(nr).FullQuantums = cfg.Quantums(k.Procs.Proc(nr).Priority)
		sidMap[i] = nr
	}
	k.Procs.Proc(idleProc).Priority = cfg.IdleQ
	k.Procs.Proc(idleProc).MaxPriority = cfg.IdleQ
	k.Procs.Proc(procP).Priority = 0
	k.Procs.Proc(procP).MaxPriority = 0
	k.Procs.Proc(procP).FullQuantums = cfg.Quantums(0)
	k.Procs.Proc(procQ).Priority = 1
	k.Procs.Proc(procQ).MaxPriority = 1
	k.Procs.Proc(procQ).FullQuantums = cfg.Quantums(1)
	k.SetSIDMap(sidMap)

	for nr := ProcNr(0); int(nr) < numDemoProcs; nr++ {
		k.Ready(nr)
	}
	return k
}

func call(k *kcore.Kernel, caller ProcNr, fn kcore.CallFunction, peer ProcNr, msg *kcore.Message, flags uint32) kcore.Status {
	if msg == nil {
		msg = &kcore.Message{}
	}
	return k.SysCall(caller, kcore.CallNumber(fn, flags), peer, 0, 0, msg)
}

func scenarioRendezvous(k *kcore.Kernel) {
	logrus.Info("scenario 1: rendezvous")
	var rm kcore.Message
	st := call(k, procB, kcore.CallReceive, kcore.Any, &rm, 0)
	logrus.Infof("  B.receive(ANY) -> %v (parks)", st)

	sm := kcore.Message{Type: 42}
	st = call(k, procA, kcore.CallSend, procB, &sm, 0)
	logrus.Infof("  A.send(B, m) -> %v; delivered m_source=%d", st, int(rm.Source))
}

func scenarioQueuedSenders(k *kcore.Kernel) {
	logrus.Info("scenario 2: queued senders delivered in order")
	mA := kcore.Message{Type: 1}
	mC := kcore.Message{Type: 2}
	st := call(k, procA, kcore.CallSend, procB, &mA, 0)
	logrus.Infof("  A.send(B) -> %v (blocks)", st)
	st = call(k, procC, kcore.CallSend, procB, &mC, 0)
	logrus.Infof("  C.send(B) -> %v (blocks)", st)

	var r1, r2 kcore.Message
	call(k, procB, kcore.CallReceive, kcore.Any, &r1, 0)
	call(k, procB, kcore.CallReceive, kcore.Any, &r2, 0)
	logrus.Infof("  B received in order: m_source=%d then m_source=%d", int(r1.Source), int(r2.Source))
}

// scenarioAlertCoalescing drives mini_alert directly, the same way a
// real interrupt epilogue would: HARDWARE is a pseudo-source never
// seated in the process table, so it never passes through sys_call's
// own-privilege-record lookup -- that dispatcher is for process-issued
// traps, not for the kernel's own interrupt-time calls.
func scenarioAlertCoalescing(k *kcore.Kernel) {
	logrus.Info("scenario 3: alert coalescing")
	priv := k.Procs.Proc(procD).Priv
	priv.SIntPending |= 0x1
	k.MiniAlert(kcore.Hardware, procD)
	priv.SIntPending |= 0x2
	k.MiniAlert(kcore.Hardware, procD)
	priv.SIntPending |= 0x4
	k.MiniAlert(kcore.Hardware, procD)

	var m kcore.Message
	call(k, procD, kcore.CallReceive, kcore.Hardware, &m, 0)
	logrus.Infof("  D.receive(HARDWARE) -> NOTIFY_ARG=0x%x, s_int_pending now=0x%x", m.NotifyArg(), priv.SIntPending)
}

func scenarioNotifyOverwrite(k *kcore.Kernel) {
	logrus.Info("scenario 4: notify overwrite")
	m1 := kcore.Message{Type: 7}
	m1.SetNotifyPayload(0, 1)
	call(k, procA, kcore.CallNotify, procB, &m1, 0)
	m2 := kcore.Message{Type: 7}
	m2.SetNotifyPayload(0, 2)
	call(k, procA, kcore.CallNotify, procB, &m2, 0)

	var r kcore.Message
	call(k, procB, kcore.CallReceive, procA, &r, 0)
	logrus.Infof("  B.receive(A) -> NOTIFY_ARG=%d (expect 2)", r.NotifyArg())
}

func scenarioDeadlock(k *kcore.Kernel) {
	logrus.Info("scenario 5: deadlock detection")
	var m1 kcore.Message
	st := call(k, procA, kcore.CallSend, procB, &m1, 0)
	logrus.Infof("  A.send(B) -> %v (blocks)", st)
	var m2 kcore.Message
	st = call(k, procB, kcore.CallSend, procA, &m2, 0)
	logrus.Infof("  B.send(A) -> %v (expect ELOCKED)", st)

	// Drain A's send so the demo process table ends in a clean state.
	var r kcore.Message
	call(k, procB, kcore.CallReceive, procA, &r, 0)
}

func scenarioQuantumDemotion(k *kcore.Kernel) {
	logrus.Info("scenario 6: quantum demotion")
	p := k.Procs.Proc(procP)
	startPriority := p.Priority
	for i := 0; i < k.Config().Quantums(startPriority); i++ {
		k.Sched(procP)
	}
	logrus.Infof("  P demoted from priority %d to %d; next to run is %d (expect Q=%d sooner)", startPriority, p.Priority, int(k.PickWinner()), int(procQ))
}

func main() {
	logrus.SetLevel(logrus.InfoLevel)
	k := buildKernel()

	collector := schedmetrics.NewCollector(k, prometheus.Labels{"app": "kcoresim"})
	k.Metrics = collector
	prometheus.MustRegister(collector)

	dbg := &introspect.Server{Kernel: k, Interval: 2 * time.Second}
	if err := dbg.Listen(":18081"); err != nil {
		logrus.WithError(err).Warn("introspect listener did not start")
	}

	scenarioRendezvous(k)
	scenarioQueuedSenders(k)
	scenarioAlertCoalescing(k)
	scenarioNotifyOverwrite(k)
	scenarioDeadlock(k)
	scenarioQuantumDemotion(k)

	addr := ":18080"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	http.Handle("/metrics", promhttp.Handler())
	logrus.Infof("serving metrics on %s/metrics", addr)
	logrus.Fatal(http.ListenAndServe(addr, nil))
}
