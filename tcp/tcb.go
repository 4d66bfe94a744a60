// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// tcb holds the sequence-space variables of RFC 793 section 3.2, the same
// fields original_source/include/netstack/api/tcp.h's struct tcb carries
// (snd.una/snd.nxt/snd.wnd/rcv.nxt/rcv.wnd/iss/irs), renamed to Go
// convention and regrouped as send/receive halves.
type tcb struct {
	// send half.
	sndUna seqnum.Value // oldest unacknowledged sequence number
	sndNxt seqnum.Value // next sequence number to send
	sndWnd seqnum.Size  // peer's advertised receive window
	sndWl1 seqnum.Value // seq number used for last window update
	sndWl2 seqnum.Value // ack number used for last window update
	iss    seqnum.Value // initial send sequence number

	// receive half.
	rcvNxt seqnum.Value // next sequence number expected from peer
	rcvWnd seqnum.Size  // our advertised receive window
	irs    seqnum.Value // initial receive sequence number

	sndWndScale int // our peer's advertised send window scale, -1 if none
	rcvWndScale int // our own advertised receive window scale

	mss uint16 // peer's advertised maximum segment size
}

// inRcvWindow reports whether seq falls within the currently advertised
// receive window, i.e. whether an incoming segment starting at seq is
// acceptable per RFC 793 section 3.3's acceptability test.
func (t *tcb) inRcvWindow(seq seqnum.Value) bool {
	return seq.InWindow(t.rcvNxt, t.rcvWnd)
}

// segmentAcceptable applies the RFC 793 page 69 four-case acceptability
// test for a segment of the given length carrying sequence number seq.
func (t *tcb) segmentAcceptable(seq seqnum.Value, segLen seqnum.Size) bool {
	if t.rcvWnd == 0 {
		return segLen == 0 && seq == t.rcvNxt
	}
	if segLen == 0 {
		return t.inRcvWindow(seq)
	}
	return t.inRcvWindow(seq) || t.inRcvWindow(seq.Add(segLen-1))
}

// acceptableAck reports whether ack acknowledges new data without
// acknowledging data we have not yet sent, i.e. SND.UNA < ack =< SND.NXT.
func (t *tcb) acceptableAck(ack seqnum.Value) bool {
	return t.sndUna.LessThan(ack) && ack.LessThanEq(t.sndNxt)
}

// bytesInFlight returns the number of bytes sent but not yet acknowledged.
func (t *tcb) bytesInFlight() seqnum.Size {
	return t.sndUna.Size(t.sndNxt)
}

// updateSendWindow applies RFC 793 section 3.9's window update rule: only
// accept a window update from a segment that is newer than the last one we
// applied, or that carries newer data with the same ack.
func (t *tcb) updateSendWindow(seq, ack seqnum.Value, wnd seqnum.Size) {
	if t.sndWl1.LessThan(seq) || (t.sndWl1 == seq && t.sndWl2.LessThanEq(ack)) {
		t.sndWnd = wnd
		t.sndWl1 = seq
		t.sndWl2 = ack
	}
}
