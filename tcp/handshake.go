// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/seqbuf"
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

type handshakeState int

// The states of a 3-way handshake, per RFC 793 figure 6, restricted to the
// subset relevant before ESTABLISHED. Named after connect.go's
// handshakeSynSent/handshakeSynRcvd/handshakeCompleted.
const (
	handshakeSynSent handshakeState = iota
	handshakeSynRcvd
	handshakeCompleted
)

// handshake drives one endpoint's 3-way handshake, active or passive.
// Grounded on connect.go's handshake struct, generalized from that
// fragment's gVisor stack.Route/NetworkEndpointID to this module's Route
// and tcb types.
type handshake struct {
	ep     *endpoint
	state  handshakeState
	active bool

	flags  uint8
	ackNum seqnum.Value

	iss    seqnum.Value
	rcvWnd seqnum.Size

	sndWnd      seqnum.Size
	mss         uint16
	sndWndScale int // -1 if the peer did not advertise window scaling
	rcvWndScale int
}

func newHandshake(ep *endpoint, active bool, rcvWnd seqnum.Size) (*handshake, error) {
	iss, err := generateISS()
	if err != nil {
		return nil, err
	}
	h := &handshake{
		ep:          ep,
		active:      active,
		iss:         seqnum.Value(iss),
		rcvWnd:      rcvWnd,
		rcvWndScale: findWndScale(uint32(rcvWnd)),
		sndWndScale: -1,
	}
	if active {
		h.state = handshakeSynSent
		h.flags = header.FlagSyn
	} else {
		h.state = handshakeSynRcvd
		h.flags = header.FlagSyn | header.FlagAck
	}
	return h, nil
}

// start sends the handshake's first segment: a bare SYN for an active open,
// or SYN-ACK for a passive one.
func (h *handshake) start() *tcpip.Error {
	e := h.ep
	e.tcb.iss = h.iss
	e.tcb.sndUna = h.iss
	e.tcb.sndNxt = h.iss.Add(1)
	e.tcb.rcvWnd = h.rcvWnd
	e.tcb.rcvWndScale = h.rcvWndScale

	var ack seqnum.Value
	if !h.active {
		ack = e.tcb.rcvNxt
	}
	return e.sendSynSegment(h.flags, h.iss, ack, h.rcvWnd, h.mss, h.rcvWndScale)
}

// handleSegment advances the handshake on receipt of s, returning true once
// the handshake has completed (successfully or not) and the endpoint's
// state has been updated accordingly. Grounded on connect.go's
// synSentState/synRcvdState.
func (h *handshake) handleSegment(s *segment) (done bool, err *tcpip.Error) {
	e := h.ep
	switch h.state {
	case handshakeSynSent:
		return h.synSentState(s)
	case handshakeSynRcvd:
		return h.synRcvdState(s)
	}
	_ = e
	return true, nil
}

func (h *handshake) synSentState(s *segment) (bool, *tcpip.Error) {
	e := h.ep

	if s.flags&header.FlagRst != 0 {
		if s.flags&header.FlagAck != 0 && s.ackNumber == e.tcb.sndNxt {
			return true, tcpip.ErrConnectionRefused
		}
		return false, nil
	}

	if s.flags&header.FlagAck != 0 {
		if !e.tcb.acceptableAck(s.ackNumber) {
			return false, nil
		}
	}

	if s.flags&header.FlagSyn == 0 {
		return false, nil
	}

	e.tcb.irs = s.sequenceNumber
	e.tcb.rcvNxt = s.sequenceNumber.Add(1)
	e.tcb.mss = s.mss
	if e.tcb.mss == 0 {
		e.tcb.mss = header.DefaultMSS
	}
	h.sndWndScale = s.wndScale
	e.tcb.sndWndScale = s.wndScale
	h.sndWnd = s.window
	e.tcb.sndWnd = s.window
	e.tcb.sndWl1 = s.sequenceNumber
	e.tcb.sndWl2 = s.ackNumber

	if s.flags&header.FlagAck != 0 {
		e.tcb.sndUna = s.ackNumber
		e.rcv = seqbuf.NewSeqBuf(e.tcb.rcvNxt, e.cfg.RecvBufferSize)
		e.setState(StateEstablished)
		e.sendEmpty(header.FlagAck)
		return true, nil
	}

	// Simultaneous open: both sides sent SYN before seeing the peer's.
	e.setState(StateSynReceived)
	e.rcv = seqbuf.NewSeqBuf(e.tcb.rcvNxt, e.cfg.RecvBufferSize)
	h.state = handshakeSynRcvd
	h.flags = header.FlagSyn | header.FlagAck
	return false, e.sendSynSegment(h.flags, e.tcb.iss, e.tcb.rcvNxt, e.tcb.rcvWnd, e.tcb.mss, h.rcvWndScale)
}

func (h *handshake) synRcvdState(s *segment) (bool, *tcpip.Error) {
	e := h.ep

	if s.flags&header.FlagRst != 0 {
		return true, tcpip.ErrConnectionRefused
	}

	if s.flags&header.FlagSyn != 0 && s.sequenceNumber != e.tcb.irs {
		// A new SYN with a different ISN: the peer restarted. Reset.
		return true, tcpip.ErrConnectionAborted
	}

	if s.flags&header.FlagAck == 0 {
		return false, nil
	}
	if s.ackNumber != e.tcb.sndNxt {
		e.sendEmpty(header.FlagRst)
		return false, nil
	}

	e.tcb.sndUna = s.ackNumber
	e.tcb.sndWnd = s.window
	e.tcb.sndWl1 = s.sequenceNumber
	e.tcb.sndWl2 = s.ackNumber
	e.setState(StateEstablished)
	return true, nil
}
