// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"sync"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/seqbuf"
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// listenContext is a LISTEN socket's backlog, per spec.md §4.5: "a LISTEN
// socket accumulates completed handshakes up to a backlog limit." It has
// its own lock, independent of any endpoint's per-socket lock, so a child
// endpoint can publish itself here from inside its own locked setState
// without ever taking a second endpoint's lock (lock rank 3 only admits one
// holder at a time per spec.md §5; this sidesteps the question entirely).
type listenContext struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog int
	ready   []*Endpoint
	closed  bool
}

func newListenContext(backlog int) *listenContext {
	lc := &listenContext{backlog: backlog}
	lc.cond = sync.NewCond(&lc.mu)
	return lc
}

func (lc *listenContext) publish(ep *Endpoint) {
	lc.mu.Lock()
	if !lc.closed && len(lc.ready) < lc.backlog {
		lc.ready = append(lc.ready, ep)
		lc.cond.Signal()
	}
	lc.mu.Unlock()
}

// Listener is a LISTEN-state socket. It owns no tcb of its own; incoming
// SYNs spawn independent child endpoints that run their own handshake and
// publish themselves to the backlog once ESTABLISHED.
type Listener struct {
	localID tcpip.Endpoint
	cfg     Config
	timer   *contimer.Timer
	route   func(remote tcpip.Address, remotePort uint16) *Route
	backlog *listenContext

	// onChild, if set, is called synchronously with each freshly-spawned
	// child endpoint's four-tuple before its handshake starts, so the stack
	// package can register it in its socket table. Without this, segments
	// after the initial SYN (the SYN-ACK's ACK, then data) would have
	// nowhere more specific than the listener to be delivered to.
	onChild func(id tcpip.Endpoint, ep *Endpoint)
}

// NewListener creates a LISTEN socket bound to localAddr:localPort. routeFor
// builds a per-child Route once a peer address is known, supplied by the
// stack package so this package stays free of link-layer concerns.
func NewListener(localAddr tcpip.Address, localPort uint16, backlog int, cfg Config, timer *contimer.Timer, routeFor func(remote tcpip.Address, remotePort uint16) *Route) *Listener {
	return &Listener{
		localID: tcpip.Endpoint{LocalAddr: localAddr, LocalPort: localPort},
		cfg:     cfg,
		timer:   timer,
		route:   routeFor,
		backlog: newListenContext(backlog),
	}
}

// OnChild registers a callback invoked once per spawned child endpoint, for
// the stack package to add it to its socket table.
func (l *Listener) OnChild(f func(id tcpip.Endpoint, ep *Endpoint)) {
	l.onChild = f
}

// HandleSegment processes a segment addressed to the listening four-tuple's
// local half. A bare SYN spawns a new child endpoint and starts its passive
// handshake; anything else (a stray ACK/RST/data segment with no matching
// established connection) is dropped, per spec.md §4.5's LISTEN row.
func (l *Listener) HandleSegment(remoteAddr tcpip.Address, remotePort uint16, s *segment) {
	if s.flags != header.FlagSyn {
		return
	}

	route := l.route(remoteAddr, remotePort)
	if route == nil {
		return
	}

	childID := tcpip.Endpoint{
		LocalAddr:  l.localID.LocalAddr,
		LocalPort:  l.localID.LocalPort,
		RemoteAddr: remoteAddr,
		RemotePort: remotePort,
	}
	child := newEndpoint(childID, route, l.cfg, l.timer)
	child.tcb.irs = s.sequenceNumber
	child.tcb.rcvNxt = s.sequenceNumber.Add(1)
	child.tcb.mss = s.mss
	if child.tcb.mss == 0 {
		child.tcb.mss = header.DefaultMSS
	}
	child.tcb.sndWndScale = s.wndScale
	child.tcb.sndWnd = s.window
	child.tcb.sndWl1 = s.sequenceNumber
	child.backlog = l.backlog

	hs, err := newHandshake(child, false, seqnum.Size(l.cfg.RecvBufferSize))
	if err != nil {
		return
	}
	child.hs = hs
	child.rcv = seqbuf.NewSeqBuf(child.tcb.rcvNxt, l.cfg.RecvBufferSize)
	child.setState(StateSynReceived)

	if l.onChild != nil {
		l.onChild(childID, &Endpoint{e: child})
	}

	go child.run()
	hs.start()
}

// Accept blocks until a fully-handshaken child connection is available.
func (l *Listener) Accept() *Endpoint {
	lc := l.backlog
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for len(lc.ready) == 0 && !lc.closed {
		lc.cond.Wait()
	}
	if len(lc.ready) == 0 {
		return nil
	}
	ep := lc.ready[0]
	lc.ready = lc.ready[1:]
	return ep
}

// Close stops accepting new connections. Children already handshaken or in
// progress are unaffected, per spec.md §5's refcounting model.
func (l *Listener) Close() {
	lc := l.backlog
	lc.mu.Lock()
	lc.closed = true
	lc.cond.Broadcast()
	lc.mu.Unlock()
}
