/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package introspect is a read-only TCP listener that streams
// newline-delimited JSON snapshots of the process table, ready
// queues, and notification pool to any connected debug client. It
// follows the teacher's sockstats.go shape: WrapConn tags a net.Conn
// with a session identity and reports on open/close, except the
// "report" here is a ticking stream of kernel snapshots instead of a
// single tcp_info gather on each end of the connection's life.
package introspect

import (
	"encoding/json"
	"net"
	"time"

	"github.com/higebu/netfd"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/Kihui/minix/pkg/kcore"
)

// Snapshot is one NDJSON line streamed to a debug client.
type Snapshot struct {
	Session     string `json:"session"`
	Time        int64  `json:"time"`
	NextPtr     int    `json:"nextPtr"`
	ProcPtr     int    `json:"procPtr"`
	QueueDepths []int  `json:"queueDepths"`
	NotifyUsed  int    `json:"notifyPoolUsed"`
	NotifyTotal int    `json:"notifyPoolTotal"`
}

// Server accepts debug connections and streams Snapshot lines to each
// one on Interval until the client disconnects. It never calls back
// into the kernel beyond a single read-only snapshot per tick, so it
// never needs the lock gateway's write-side brackets.
type Server struct {
	Kernel   *kcore.Kernel
	Interval time.Duration
	Clock    func() int64

	listener net.Listener
}

// Listen starts accepting connections on addr in a background
// goroutine; callers Close the Server to stop it.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	if s.Clock == nil {
		s.Clock = func() int64 { return time.Now().UnixNano() }
	}
	if s.Interval <= 0 {
		s.Interval = time.Second
	}
	go s.acceptLoop()
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			logrus.WithError(err).Debug("introspect: listener closed")
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	session := xid.New()
	fd := netfd.GetFdFromConn(conn)
	log := logrus.WithFields(logrus.Fields{"session": session.String(), "fd": fd})
	log.Info("introspect: session opened")
	defer func() {
		conn.Close()
		log.Info("introspect: session closed")
	}()

	enc := json.NewEncoder(conn)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for range ticker.C {
		snap := s.snapshot(session.String())
		if err := enc.Encode(snap); err != nil {
			log.WithError(err).Debug("introspect: write failed, dropping session")
			return
		}
	}
}

func (s *Server) snapshot(session string) Snapshot {
	pt := s.Kernel.Procs
	depths := make([]int, pt.NRSchedQueues())
	for q := range depths {
		depths[q] = pt.QueueDepth(q)
	}
	return Snapshot{
		Session:     session,
		Time:        s.Clock(),
		NextPtr:     int(pt.NextPtr),
		ProcPtr:     int(pt.ProcPtr),
		QueueDepths: depths,
		NotifyUsed:  s.Kernel.Pool.Used(),
		NotifyTotal: s.Kernel.Pool.Total(),
	}
}
