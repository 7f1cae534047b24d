/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package kcore implements the message-passing and scheduling core of a
// small microkernel: the process table, the ready-queue scheduler, the
// four IPC primitives (send, receive, notify, alert) and the system-call
// dispatcher that routes into them.
package kcore

import (
	"github.com/sirupsen/logrus"
)

// ProcNr addresses a process slot. NoProc means "no process" (an empty
// linked-list link or an unset sendto/getfrom field).
type ProcNr int

const (
	// NoProc is the sentinel for "not a process" in link fields.
	NoProc ProcNr = -1
	// Any is the legal wildcard source for RECEIVE.
	Any ProcNr = -2
	// Hardware and System are pseudo-source identifiers carrying
	// kernel-synthesized interrupt/signal payloads.
	Hardware ProcNr = -3
	System   ProcNr = -4
)

// RTS flags. A process is runnable exactly when RTSFlags == 0.
const (
	RTSSending   uint32 = 1 << 0
	RTSReceiving uint32 = 1 << 1
)

// Privilege flags (PrivEntry.SFlags).
const (
	SFlagPreemptible uint32 = 1 << 0
	SFlagBillable    uint32 = 1 << 1
	SFlagRdyQHead    uint32 = 1 << 2
	// SFlagKernelTask marks a privileged task that always replies and
	// must not also be required to issue a receive (spec.md §4.1):
	// only SENDREC may target it.
	SFlagKernelTask uint32 = 1 << 3
)

// Call numbers decomposed from call_nr: low bits are the function,
// high bits are flags.
type CallFunction int

const (
	CallSend CallFunction = iota
	CallReceive
	CallSendRec
	CallNotify
	CallAlert
	CallEcho
)

const (
	// NonBlocking applies to SEND/RECEIVE.
	FlagNonBlocking uint32 = 1 << 8
	// FreshAnswer is set implicitly for the receive half of SENDREC.
	FlagFreshAnswer uint32 = 1 << 9
)

// CallNumber packs a function and flag bits the way the trap ABI does.
func CallNumber(fn CallFunction, flags uint32) int {
	return int(fn) | int(flags)
}

func decodeCall(callNr int) (CallFunction, uint32) {
	return CallFunction(callNr &^ int(FlagNonBlocking|FlagFreshAnswer)), uint32(callNr) & (FlagNonBlocking | FlagFreshAnswer)
}

// Config is the scheduler/process-table geometry, the way the teacher's
// pkg/linux/init.go carries a table of per-kernel-version struct sizes:
// a handful of named constants a real boot would read from a build
// manifest, collected here so tests can shrink them.
type Config struct {
	NRProcs         int
	NRSchedQueues   int
	IdleQ           int
	NRNotifyBufs    int
	MessBodySize    int
	DebugSchedCheck bool
	// Quantums returns the number of full quantums granted at a given
	// priority level before sched() demotes the process by one level.
	Quantums func(priority int) int
}

// DefaultConfig mirrors MINIX's historical defaults at a toy scale
// suitable for tests and the demo binaries.
func DefaultConfig() Config {
	return Config{
		NRProcs:         32,
		NRSchedQueues:   16,
		IdleQ:           15,
		NRNotifyBufs:    16,
		MessBodySize:    MessBodySize,
		DebugSchedCheck: true,
		Quantums: func(priority int) int {
			// Lower-numbered (higher-priority) queues get fewer full
			// quantums before decaying, the way an interactive-first
			// scheduler starves a runaway high-priority hog down
			// toward the batch queues.
			if priority < 4 {
				return 1
			}
			return 3
		},
	}
}

// MessBodySize is MESS_SIZE's body portion (spec.md §6): the number of
// bytes in a Message's type-specific payload, fixed at compile time the
// way a C union member count is, not a runtime-resizable quantity.
// Config.MessBodySize exists so a boot manifest can assert it matches
// this build's wire layout; NewKernel panics if it doesn't.
const MessBodySize = 56

// Message is the fixed-size record exchanged between processes.
type Message struct {
	Source ProcNr
	Type   int32
	Body   [MessBodySize]byte
}

// Notification accessors for the synthetic fields described in spec.md
// §4.4/§6: NOTIFY_SOURCE, NOTIFY_TYPE, NOTIFY_FLAGS, NOTIFY_ARG,
// NOTIFY_TIMESTAMP. Stored as a small fixed header inside Body so the
// struct stays a flat, copyable value (no allocation at message time).
type notifyHeader struct {
	Flags     int32
	Arg       int32
	Timestamp int64
}

func (m *Message) setNotify(source ProcNr, typ int32, flags, arg int32, timestamp int64) {
	m.Source = source
	m.Type = typ
	hdr := notifyHeader{Flags: flags, Arg: arg, Timestamp: timestamp}
	putNotifyHeader(&m.Body, hdr)
}

func (m *Message) NotifyFlags() int32     { return getNotifyHeader(&m.Body).Flags }
func (m *Message) NotifyArg() int32       { return getNotifyHeader(&m.Body).Arg }
func (m *Message) NotifyTimestamp() int64 { return getNotifyHeader(&m.Body).Timestamp }

// SetNotifyPayload stores the flags/arg pair a caller building an
// outgoing NOTIFY message wants delivered; mini_notify's slow path
// reads it back out via NotifyFlags/NotifyArg when coalescing into
// the notification pool.
func (m *Message) SetNotifyPayload(flags, arg int32) {
	hdr := notifyHeader{Flags: flags, Arg: arg}
	putNotifyHeader(&m.Body, hdr)
}

// Logger is the package-wide structured logger, following the teacher's
// cmd/get/main.go use of logrus.Infof/Fatalf.
var Logger logrus.FieldLogger = logrus.StandardLogger()

type logFields = logrus.Fields
