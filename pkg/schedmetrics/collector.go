/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package schedmetrics exposes the scheduler and IPC core as a
// Prometheus collector, the same hand-rolled Collector shape as the
// teacher's pkg/exporter package (a mutex-guarded struct with
// Describe/Collect and a small table of descriptor+supplier pairs),
// applied to ready-queue depth and call counters instead of per-
// connection TCP info.
package schedmetrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kihui/minix/pkg/kcore"
)

type info struct {
	description *prometheus.Desc
	supplier    func(c *Collector, metrics chan<- prometheus.Metric)
}

// Collector wraps a *kcore.Kernel and the counters kcore.Kernel calls
// through KernelMetrics (demotions, per-call-status counts), the way
// TCPInfoCollector wraps a map of net.Conn and calls through to
// linux.GetTCPInfo on Collect.
type Collector struct {
	mu     sync.Mutex
	kernel *kcore.Kernel

	demotions map[int]uint64                    // by new priority
	syscalls  map[kcore.CallFunction]map[kcore.Status]uint64

	infos []info
}

// NewCollector builds a Collector bound to kernel. Callers install it
// as kernel.Metrics (it satisfies kcore.KernelMetrics) and register it
// with prometheus.MustRegister, exactly the two steps
// cmd/exporter_example1/main.go performs for TCPInfoCollector.
func NewCollector(kernel *kcore.Kernel, constLabels prometheus.Labels) *Collector {
	c := &Collector{
		kernel:    kernel,
		demotions: make(map[int]uint64),
		syscalls:  make(map[kcore.CallFunction]map[kcore.Status]uint64),
	}
	c.addMetrics(constLabels)
	return c
}

func (c *Collector) addMetrics(constLabels prometheus.Labels) {
	c.infos = []info{
		{
			description: prometheus.NewDesc("minix_ready_queue_depth", "number of processes on a ready queue, by priority", []string{"priority"}, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				for q := 0; q < c.kernel.Procs.NRSchedQueues(); q++ {
					metrics <- prometheus.MustNewConstMetric(c.infos[0].description, prometheus.GaugeValue, float64(c.kernel.Procs.QueueDepth(q)), strconv.Itoa(q))
				}
			},
		},
		{
			description: prometheus.NewDesc("minix_blocked_senders", "processes currently parked SENDING on some destination's caller_q", nil, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				metrics <- prometheus.MustNewConstMetric(c.infos[1].description, prometheus.GaugeValue, float64(c.kernel.Procs.BlockedSenders()))
			},
		},
		{
			description: prometheus.NewDesc("minix_notify_pending_bits", "total set bits across every process's pending-notify bitmap", nil, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				metrics <- prometheus.MustNewConstMetric(c.infos[2].description, prometheus.GaugeValue, float64(c.kernel.Procs.NotifyPendingBits()))
			},
		},
		{
			description: prometheus.NewDesc("minix_notify_pool_used", "notification pool slots currently allocated", nil, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				metrics <- prometheus.MustNewConstMetric(c.infos[3].description, prometheus.GaugeValue, float64(c.kernel.Pool.Used()))
			},
		},
		{
			description: prometheus.NewDesc("minix_notify_pool_total", "notification pool capacity", nil, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				metrics <- prometheus.MustNewConstMetric(c.infos[4].description, prometheus.GaugeValue, float64(c.kernel.Pool.Total()))
			},
		},
		{
			description: prometheus.NewDesc("minix_sched_demotions_total", "quantum-exhaustion priority demotions, by resulting priority", []string{"priority"}, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				for priority, n := range c.demotions {
					metrics <- prometheus.MustNewConstMetric(c.infos[5].description, prometheus.CounterValue, float64(n), strconv.Itoa(priority))
				}
			},
		},
		{
			description: prometheus.NewDesc("minix_syscalls_total", "sys_call invocations, by function and returned status", []string{"function", "status"}, constLabels),
			supplier: func(c *Collector, metrics chan<- prometheus.Metric) {
				for fn, byStatus := range c.syscalls {
					for status, n := range byStatus {
						metrics <- prometheus.MustNewConstMetric(c.infos[6].description, prometheus.CounterValue, float64(n), callFunctionName(fn), status.Error())
					}
				}
			},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, info := range c.infos {
		descs <- info.description
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, info := range c.infos {
		info.supplier(c, metrics)
	}
}

// Inc implements kcore.DemotionCounter: the scheduler calls this every
// time it demotes a process's priority on quantum exhaustion.
func (c *Collector) Inc(newPriority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.demotions[newPriority]++
}

// ObserveSysCall implements the rest of kcore.KernelMetrics: the
// dispatcher calls this once per sys_call with its final status.
func (c *Collector) ObserveSysCall(fn kcore.CallFunction, status kcore.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byStatus, ok := c.syscalls[fn]
	if !ok {
		byStatus = make(map[kcore.Status]uint64)
		c.syscalls[fn] = byStatus
	}
	byStatus[status]++
}

func callFunctionName(fn kcore.CallFunction) string {
	switch fn {
	case kcore.CallSend:
		return "send"
	case kcore.CallReceive:
		return "receive"
	case kcore.CallSendRec:
		return "sendrec"
	case kcore.CallNotify:
		return "notify"
	case kcore.CallAlert:
		return "alert"
	case kcore.CallEcho:
		return "echo"
	default:
		return "unknown"
	}
}
