/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package lockgate is the host-side replacement for the kernel's
// interrupt-disable brackets (spec.md §4, §9 Design Notes: "a
// re-implementation on a host with preemptible kernel mode must
// replace interrupt-disable with a spinlock held across the entire
// primitive"). There is no hardware interrupt-enable flag to toggle
// from a goroutine, so the bracket is a mutex held for the duration of
// the call, skipped when the caller is already inside a simulated
// interrupt frame (spec.md §4.9: "when called from interrupt context
// (k_reenter >= 0), the bracket is omitted because interrupts are
// already masked").
package lockgate

import (
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Gateway serializes entry into the kernel core the way disabling
// interrupts does on real hardware: at most one caller is ever inside
// a bracketed call at a time, unless the caller is already running
// inside a simulated interrupt frame (EnterInterrupt/LeaveInterrupt),
// in which case interrupts are already masked and the bracket is
// skipped rather than taken recursively.
type Gateway struct {
	mu       sync.Mutex
	kReenter int32

	Logger logrus.FieldLogger
}

// New builds a Gateway; Logger defaults to logrus' standard logger if
// left nil. kReenter starts at -1, MINIX's task-context value: no
// interrupt frame is active until EnterInterrupt is called.
func New() *Gateway {
	return &Gateway{kReenter: -1, Logger: logrus.StandardLogger()}
}

// Reenter reports k_reenter: -1 at task context, >= 0 while one or
// more simulated interrupt frames are active.
func (g *Gateway) Reenter() int32 {
	return atomic.LoadInt32(&g.kReenter)
}

// EnterInterrupt marks entry into a simulated hardware interrupt,
// the trap-stub equivalent of incrementing k_reenter before calling
// into the core; masking is assumed already in effect, so brackets
// entered from here skip the mutex. Callers must pair every
// EnterInterrupt with a LeaveInterrupt.
func (g *Gateway) EnterInterrupt() {
	atomic.AddInt32(&g.kReenter, 1)
}

// LeaveInterrupt reverses EnterInterrupt.
func (g *Gateway) LeaveInterrupt() {
	atomic.AddInt32(&g.kReenter, -1)
}

// Do runs fn inside the bracket, tagging the bracket with a sortable
// correlation id (the teacher's go.mod stack includes rs/xid for
// exactly this kind of opaque per-session token; here it tags one
// gateway entry instead of one debug connection). If called while
// already inside a simulated interrupt frame, the mutex bracket is
// omitted per spec.md §4.9, since interrupts are already masked and
// task-context code cannot be concurrently running.
func (g *Gateway) Do(name string, fn func()) {
	id := xid.New()
	log := g.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	if g.Reenter() >= 0 {
		log.WithFields(logrus.Fields{"bracket": name, "id": id.String(), "reenter": g.Reenter()}).Trace("lock gateway bracket skipped (interrupt context)")
		fn()
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	log.WithFields(logrus.Fields{"bracket": name, "id": id.String()}).Trace("lock gateway enter")
	fn()
	log.WithFields(logrus.Fields{"bracket": name, "id": id.String()}).Trace("lock gateway exit")
}

// LockSend, LockReceive, LockNotify, LockAlert, LockReady, LockUnready
// and LockSched name the brackets the kernel core actually needs, the
// way the spec's interrupt-disable/enable pairs are named per
// primitive rather than left anonymous.
func (g *Gateway) LockSend(fn func())    { g.Do("mini_send", fn) }
func (g *Gateway) LockReceive(fn func()) { g.Do("mini_receive", fn) }
func (g *Gateway) LockNotify(fn func())  { g.Do("mini_notify", fn) }
func (g *Gateway) LockAlert(fn func())   { g.Do("mini_alert", fn) }
func (g *Gateway) LockReady(fn func())   { g.Do("ready", fn) }
func (g *Gateway) LockUnready(fn func()) { g.Do("unready", fn) }
func (g *Gateway) LockSched(fn func())   { g.Do("sched", fn) }
