// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics holds the Prometheus instrumentation for one running
// Stack, per SPEC_FULL.md's DOMAIN STACK section. It is deliberately a thin
// bundle of counters and gauges rather than a singleton: New takes a
// prometheus.Registerer so a process embedding more than one Stack, or a
// test, can register each instance's metrics independently.
//
// Grounded on
// _examples/malbeclabs-doublezero/telemetry/flow-enricher/internal/flow-enricher/metrics.go's
// NewXMetrics(reg prometheus.Registerer) struct-of-counters pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of counters and gauges one Stack reports.
type Metrics struct {
	SegmentsSent     prometheus.Counter
	SegmentsReceived prometheus.Counter
	SegmentsDropped  prometheus.Counter
	Retransmits      prometheus.Counter

	ARPResolutions prometheus.Counter
	ARPTimeouts    prometheus.Counter

	ActiveSockets    prometheus.Gauge
	ListeningSockets prometheus.Gauge
}

// New builds a Metrics bundle registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SegmentsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_segments_sent_total",
			Help: "Total TCP segments transmitted.",
		}),
		SegmentsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_segments_received_total",
			Help: "Total TCP segments received and accepted for demux.",
		}),
		SegmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_segments_dropped_total",
			Help: "Total inbound frames dropped before reaching an endpoint or listener.",
		}),
		Retransmits: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_retransmits_total",
			Help: "Total segments retransmitted after an RTO fired.",
		}),
		ARPResolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_arp_resolutions_total",
			Help: "Total ARP bindings learned, by reply or gratuitous announcement.",
		}),
		ARPTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "netstack_arp_timeouts_total",
			Help: "Total ARP resolutions that gave up without a reply.",
		}),
		ActiveSockets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netstack_active_sockets",
			Help: "Current number of TCP endpoints not in the CLOSED state.",
		}),
		ListeningSockets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netstack_listening_sockets",
			Help: "Current number of LISTEN sockets.",
		}),
	}
}
