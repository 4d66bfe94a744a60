// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// maxSegmentsPerWake caps how many queued segments the processing loop
// drains before yielding back to its wake channel, so a burst of traffic on
// one endpoint cannot starve its own timers. Named after connect.go's
// constant of the same purpose.
const maxSegmentsPerWake = 100

// deliver hands an inbound segment to the endpoint from the stack's demux
// path. It must not block: it only queues the segment and wakes the
// processing loop, matching original_source/src/intf/intf.c's pattern of a
// single dedicated thread draining a per-socket queue.
func (e *endpoint) deliver(s *segment) {
	e.mu.Lock()
	e.segs = append(e.segs, s)
	e.mu.Unlock()
	e.signal()
}

// run is the endpoint's processing goroutine: one per live connection, the
// Go-idiomatic equivalent of original_source's per-socket thread that owns
// the tcb and drains its segment queue. Each pass checks every event source
// (queued segments, a fired resend timer, external notifications) rather
// than multiplexing on which one woke it, since e.wake is a plain doorbell
// and not tagged with a reason; the blocking socket calls in endpoint_io.go
// wait on e.cond instead.
func (e *endpoint) run() {
	defer e.finishWorker()

	for {
		<-e.wake

		e.mu.Lock()
		resend := e.resendPending
		e.resendPending = false
		state := e.state
		e.mu.Unlock()
		if resend && state != StateClosed {
			e.mu.Lock()
			e.handleRTO()
			e.mu.Unlock()
		}

		e.processSegments()

		if e.processNotifications() {
			return
		}

		e.mu.Lock()
		done := e.state == StateClosed && e.hs == nil
		e.mu.Unlock()
		if done {
			return
		}
	}
}

func (e *endpoint) processNotifications() (done bool) {
	e.mu.Lock()
	n := e.notify
	e.notify = 0
	e.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if n&notifyAbort != 0 {
		e.sendEmpty(header.FlagRst)
		e.raise(tcpip.ErrAborted, StateClosed)
		return true
	}
	if n&notifyWrite != 0 {
		e.sendData()
	}
	if n&notifyShutdownWrite != 0 {
		e.sndClosed = true
		e.sendData()
	}
	if n&notifyClose != 0 {
		e.sndClosed = true
		e.sendData()
	}
	return false
}

// processSegments drains up to maxSegmentsPerWake queued segments, routing
// each to the handshake or to the established-connection path depending on
// endpoint state.
func (e *endpoint) processSegments() {
	for i := 0; i < maxSegmentsPerWake; i++ {
		e.mu.Lock()
		if len(e.segs) == 0 {
			e.mu.Unlock()
			return
		}
		s := e.segs[0]
		e.segs = e.segs[1:]
		e.mu.Unlock()

		e.handleSegmentLocked(s)
		s.release()
	}
	if len(e.segs) > 0 {
		e.signal() // more work queued than this wake processed
	}
}

func (e *endpoint) handleSegmentLocked(s *segment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hs != nil {
		done, err := e.hs.handleSegment(s)
		if done {
			e.hs = nil
			if err != nil {
				e.raise(err, StateClosed)
			}
		}
		return
	}

	if !e.state.connected() {
		return
	}

	if s.flags&header.FlagRst != 0 {
		if e.tcb.inRcvWindow(s.sequenceNumber) {
			e.raise(tcpip.ErrConnectionReset, StateClosed)
		}
		return
	}

	if s.flags&header.FlagSyn != 0 {
		// A SYN inside an established connection's window is a
		// reused-port collision; RFC 793 page 71 calls for a reset.
		e.sendEmpty(header.FlagRst)
		e.raise(tcpip.ErrConnectionReset, StateClosed)
		return
	}

	if s.flags&header.FlagAck == 0 {
		return
	}
	e.handleAck(s)

	if !e.tcb.segmentAcceptable(s.sequenceNumber, s.logicalLen()) {
		// Out of window entirely; still ack so the peer can recover,
		// per RFC 793 page 69's acceptability test.
		if len(s.data) > 0 || s.flags&header.FlagFin != 0 {
			e.sendEmpty(header.FlagAck)
		}
		return
	}

	e.handlePayload(s)

	if s.flags&header.FlagFin != 0 {
		e.handleFin(s)
	}
}

// handleAck applies an acknowledgment to the send side: advances SND.UNA,
// trims sndQueue's acknowledged prefix (waking writers blocked on a full
// send queue), updates the send window, and disarms or rearms the
// retransmission timer, per spec.md §4.5's ACK processing.
func (e *endpoint) handleAck(s *segment) {
	if e.tcb.acceptableAck(s.ackNumber) || s.ackNumber == e.tcb.sndUna {
		acked := int(e.tcb.sndUna.Size(s.ackNumber))
		if acked > 0 {
			trim := acked
			if trim > len(e.sndQueue) {
				trim = len(e.sndQueue)
			}
			e.sndQueue = e.sndQueue[trim:]
			e.cond.Broadcast()
			e.tcb.sndUna = s.ackNumber
			e.retries = 0
			e.rto = e.cfg.InitialRTO
		}
		e.tcb.updateSendWindow(s.sequenceNumber, s.ackNumber, s.window)

		if e.tcb.bytesInFlight() == 0 && !e.pendingFin() {
			e.cancelRTO()
		} else if acked > 0 {
			e.armRTO()
		}

		e.advanceCloseState(s)
	}
}

// advanceCloseState applies the handful of state transitions that are
// purely ACK-driven (no new data or FIN involved), per spec.md §4.5's
// condensed per-state table: FIN-WAIT-1 -> FIN-WAIT-2 once our FIN is
// acked, CLOSING -> TIME-WAIT, LAST-ACK -> CLOSED.
func (e *endpoint) advanceCloseState(s *segment) {
	finAcked := e.sndClosed && e.tcb.bytesInFlight() == 0
	switch e.state {
	case StateFinWait1:
		if finAcked {
			e.setState(StateFinWait2)
		}
	case StateClosing:
		if finAcked {
			e.setState(StateTimeWait)
			e.armTimeWait()
		}
	case StateLastAck:
		if finAcked {
			e.setState(StateClosed)
			e.finishWorker()
		}
	}
}

// handlePayload reassembles in-window payload bytes via the receive
// sequence buffer (spec.md §8 scenario 6: out-of-order segments reassemble
// correctly), advances RCV.NXT over any newly-contiguous bytes, and wakes
// blocked Read callers.
func (e *endpoint) handlePayload(s *segment) {
	if len(s.data) == 0 || e.rcv == nil {
		return
	}
	if err := e.rcv.Write(s.sequenceNumber, s.data); err != nil {
		return
	}
	if s.sequenceNumber == e.tcb.rcvNxt || s.sequenceNumber.LessThan(e.tcb.rcvNxt) {
		newEnd := e.rcv.End()
		if e.tcb.rcvNxt.LessThan(newEnd) {
			e.tcb.rcvNxt = newEnd
			e.cond.Broadcast()
		}
	}
	if e.delayedACKArmed {
		e.cancelDelayedACK()
		e.sendEmpty(header.FlagAck)
	} else {
		e.armDelayedACK()
	}
}

// handleFin processes a peer FIN once it has reached RCV.NXT, per spec.md
// §4.5's CLOSE-WAIT/CLOSING/TIME-WAIT transitions.
func (e *endpoint) handleFin(s *segment) {
	finSeq := s.sequenceNumber.Add(seqnum.Size(len(s.data)))
	if finSeq != e.tcb.rcvNxt {
		return // FIN is beyond a gap; wait for the gap to fill
	}
	e.tcb.rcvNxt = e.tcb.rcvNxt.Add(1)
	e.rcvClosed = true
	e.cond.Broadcast()
	e.cancelDelayedACK()
	e.sendEmpty(header.FlagAck)

	switch e.state {
	case StateEstablished:
		e.setState(StateCloseWait)
	case StateFinWait1:
		e.setState(StateClosing)
	case StateFinWait2:
		e.setState(StateTimeWait)
		e.armTimeWait()
	}
}
