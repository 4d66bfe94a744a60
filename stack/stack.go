// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stack wires together the link layer, the ARP neighbor table, and
// the TCP connection engine into one running instance, per spec.md §3's
// "Interface" and "Socket table" types. It owns the process-wide timer
// thread (spec.md §5) and the demultiplexing path from an inbound Ethernet
// frame down to the TCP endpoint or listener it belongs to.
//
// Grounded on
// _examples/coolheart77-netstack/tcpip/transport/tcp/connect.go's
// stack.Stack/stack.Route collaborators, generalized from that fragment's
// gVisor network/transport dispatch table to this module's single-protocol
// (IPv4-over-Ethernet, TCP-only) demux.
package stack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/link"
	"github.com/coolheart77/netstack/metrics"
	"github.com/coolheart77/netstack/neighbor"
	"github.com/coolheart77/netstack/tcp"
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
)

// Stack is one running network-stack instance: one interface, its ARP
// table, the shared timer thread, and the TCP socket/listener tables.
type Stack struct {
	log   *slog.Logger
	cfg   tcp.Config
	timer *contimer.Timer

	intf *link.Interface
	arp  *neighbor.Table

	mu        sync.Mutex
	endpoints map[tcpip.Endpoint]*tcp.Endpoint
	listeners map[uint16]*tcp.Listener

	metrics *metrics.Metrics
}

// New builds a Stack bound to intf, ready to accept Listen/Dial calls once
// Run has been started.
func New(intf *link.Interface, cfg tcp.Config, log *slog.Logger, m *metrics.Metrics) *Stack {
	timer := contimer.New()
	s := &Stack{
		log:       log,
		cfg:       cfg,
		timer:     timer,
		intf:      intf,
		arp:       neighbor.NewTable(timer),
		endpoints: make(map[tcpip.Endpoint]*tcp.Endpoint),
		listeners: make(map[uint16]*tcp.Listener),
		metrics:   m,
	}
	s.arp.SetPermanent(intf.ProtocolAddress(), intf.LinkAddress())
	return s
}

// Close stops the stack's timer thread and the underlying interface.
func (s *Stack) Close() {
	s.timer.Stop()
	s.intf.Close()
}

// Run pumps frames from the interface's receive loop into the demux path
// until the interface is closed. It is meant to run in its own goroutine,
// one per Stack, mirroring
// original_source/src/intf/intf.c's single intf_recv thread per interface.
func (s *Stack) Run() {
	for f := range s.intf.Frames() {
		s.handleFrame(f)
	}
}

func (s *Stack) handleFrame(f *link.InboundFrame) {
	defer f.Release()

	switch f.EtherType {
	case header.EthernetTypeARP:
		s.handleARP(f)
	case header.EthernetTypeIPv4:
		s.handleIPv4(f)
	default:
		s.metrics.SegmentsDropped.Inc()
	}
}

func (s *Stack) handleARP(f *link.InboundFrame) {
	arp := header.ARP(f.Payload)
	if !arp.IsValid() {
		s.metrics.SegmentsDropped.Inc()
		return
	}
	senderProto := arp.SenderProtoAddr()
	senderHWAddr := arp.SenderHardwareAddr()
	sender := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, senderProto[:])
	senderHW := tcpip.NewAddress(tcpip.EtherProtocolNumber, senderHWAddr[:])
	s.arp.Learn(sender, senderHW)
	s.metrics.ARPResolutions.Inc()

	targetProto := arp.TargetProtoAddr()
	target := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, targetProto[:])
	if arp.Op() == header.ARPRequest && target.Equal(s.intf.ProtocolAddress()) {
		s.intf.SendARPReply(senderHW.Bytes(), sender.Bytes())
	}
}

func (s *Stack) handleIPv4(f *link.InboundFrame) {
	ip := header.IPv4(f.Payload)
	if !ip.IsValid(len(f.Payload)) {
		s.metrics.SegmentsDropped.Inc()
		return
	}
	if ip.Protocol() != header.TCPProtocolNumber {
		s.metrics.SegmentsDropped.Inc()
		return
	}
	hlen := ip.HeaderLength()
	tcpBytes := f.Payload[hlen:ip.TotalLength()]
	if len(tcpBytes) < header.TCPMinimumSize {
		s.metrics.SegmentsDropped.Inc()
		return
	}

	srcAddr := ip.SourceAddress()
	dstAddr := ip.DestinationAddress()
	remote := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, srcAddr[:])
	local := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, dstAddr[:])

	if !header.ChecksumVerify(tcpBytes, header.PseudoHeaderChecksum(header.TCPProtocolNumber, srcAddr, dstAddr, uint16(len(tcpBytes)))) {
		s.metrics.SegmentsDropped.Inc()
		return
	}

	th := header.TCP(tcpBytes)
	id := tcpip.Endpoint{LocalAddr: local, LocalPort: th.DestinationPort(), RemoteAddr: remote, RemotePort: th.SourcePort()}

	s.metrics.SegmentsReceived.Inc()

	frame := f.Frame
	frame.WriteLock()
	frame.Consume(hlen)
	frame.SetTail(header.EthernetMinimumSize + int(ip.TotalLength())) // tail is an offset into the whole Ethernet frame
	frame.Unlock()

	s.mu.Lock()
	ep, ok := s.endpoints[id]
	listener, hasListener := s.listeners[id.LocalPort]
	s.mu.Unlock()

	// NewSegmentForDispatch takes its own reference on frame; the release at
	// the bottom of this function (via f.Release's defer in handleFrame) and
	// that reference are independent.
	seg := tcp.NewSegmentForDispatch(frame, id)
	if ok {
		ep.Deliver(seg)
		return
	}
	if hasListener {
		listener.HandleSegment(remote, th.SourcePort(), seg)
		return
	}
	// Neither a socket nor a listener claims this four-tuple: per spec.md
	// §4.5 step 3 (RFC 793 §3.4), reply with RST unless the segment itself
	// carries RST. SendReset checks that flag itself and no-ops if set.
	tcp.SendReset(s.routeFor(remote, th.SourcePort()), seg)
	seg.Release()
	s.metrics.SegmentsDropped.Inc()
}

// routeFor builds a tcp.Route to remote:remotePort, resolving the
// destination hardware address through the ARP table on first send, per
// spec.md §4.3.
func (s *Stack) routeFor(remote tcpip.Address, remotePort uint16) *tcp.Route {
	return &tcp.Route{
		LocalAddr:  s.intf.ProtocolAddress(),
		RemoteAddr: remote,
		MTU:        s.intf.MTU(),
		Send: func(payload []byte) *tcpip.Error {
			hw, err := s.arp.Resolve(s.intf.ProtocolAddress(), s.intf.LinkAddress(), remote, s.intf.SendARPRequest, s.cfg.ARPWaitTimeout)
			if err != nil {
				s.metrics.ARPTimeouts.Inc()
				return tcpip.ErrNoRoute
			}
			if sendErr := s.intf.SendIPv4(hw.Bytes(), remote.Bytes(), header.TCPProtocolNumber, payload); sendErr != nil {
				return tcpip.ErrIO
			}
			s.metrics.SegmentsSent.Inc()
			return nil
		},
	}
}

// Dial performs an active TCP open to remote:remotePort from a locally
// chosen ephemeral port.
func (s *Stack) Dial(remote tcpip.Address, remotePort uint16) (*tcp.Endpoint, error) {
	s.mu.Lock()
	port := s.nextEphemeralPortLocked()
	s.mu.Unlock()

	id := tcpip.Endpoint{LocalAddr: s.intf.ProtocolAddress(), LocalPort: port, RemoteAddr: remote, RemotePort: remotePort}
	ep := tcp.NewEndpoint(id, s.routeFor(remote, remotePort), s.cfg, s.timer)

	s.mu.Lock()
	s.endpoints[id] = ep
	s.mu.Unlock()

	if err := ep.Connect(time.Time{}); err != nil {
		s.mu.Lock()
		delete(s.endpoints, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("connect %s:%d: %s", remote, remotePort, err)
	}

	s.metrics.ActiveSockets.Inc()
	go s.reapEndpoint(id, ep)
	return ep, nil
}

// reapEndpoint removes id from the socket table and decrements the
// active-socket gauge once ep's processing loop has exited for good.
func (s *Stack) reapEndpoint(id tcpip.Endpoint, ep *tcp.Endpoint) {
	ep.Wait()
	s.mu.Lock()
	delete(s.endpoints, id)
	s.mu.Unlock()
	s.metrics.ActiveSockets.Dec()
}

// Listen opens a TCP listener on port with the given accept backlog.
func (s *Stack) Listen(port uint16, backlog int) *tcp.Listener {
	l := tcp.NewListener(s.intf.ProtocolAddress(), port, backlog, s.cfg, s.timer, s.routeFor)
	l.OnChild(func(id tcpip.Endpoint, ep *tcp.Endpoint) {
		s.mu.Lock()
		s.endpoints[id] = ep
		s.mu.Unlock()
		s.metrics.ActiveSockets.Inc()
		go s.reapEndpoint(id, ep)
	})

	s.mu.Lock()
	s.listeners[port] = l
	s.mu.Unlock()
	s.metrics.ListeningSockets.Inc()
	return l
}

func (s *Stack) nextEphemeralPortLocked() uint16 {
	for p := uint16(49152); p != 0; p++ {
		used := false
		for id := range s.endpoints {
			if id.LocalPort == p {
				used = true
				break
			}
		}
		if !used {
			return p
		}
	}
	return 49152
}
