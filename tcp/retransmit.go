// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// armRTO (re)arms the retransmission timer for the oldest unacknowledged
// byte, per spec.md §4.6. Grounded on
// original_source/lib/tcp/tcpout.c's use of contimer_queue_rel on
// sock->rtimer after every data segment is put on the wire.
func (e *endpoint) armRTO() {
	e.cancelRTO()
	e.rtoHandle = e.timer.QueueRel(e.rto, e.onRTOFired, e)
}

func (e *endpoint) cancelRTO() {
	if e.rtoHandle != 0 {
		e.timer.Cancel(e.rtoHandle)
		e.rtoHandle = 0
	}
}

// onRTOFired runs on the shared timer thread; per spec.md §5 it must not
// block, so it only records that a resend is due and wakes the processing
// loop, deferring the actual retransmission to run().
func (e *endpoint) onRTOFired(arg any) {
	ep := arg.(*endpoint)
	ep.mu.Lock()
	ep.resendPending = true
	ep.mu.Unlock()
	ep.signal()
}

// handleRTO runs on the endpoint's processing goroutine after onRTOFired
// has set resendPending and woken it. It doubles the RTO (capped at cfg.MaxRTO), retransmits the
// oldest unacknowledged segment, and aborts the connection after
// cfg.MaxRetries consecutive timeouts, per spec.md §4.6's retry/backoff
// rule and original_source/lib/tcp/tcpout.c's retransmit-on-timeout path.
func (e *endpoint) handleRTO() {
	if e.tcb.bytesInFlight() == 0 && !e.pendingFin() {
		return
	}

	e.retries++
	if e.retries > e.cfg.MaxRetries {
		e.raise(tcpip.ErrTimeout, StateClosed)
		return
	}

	e.rto *= 2
	if e.rto > e.cfg.MaxRTO {
		e.rto = e.cfg.MaxRTO
	}

	e.retransmitOldest()
	e.armRTO()
}

// pendingFin reports whether a FIN has been sent but not yet acknowledged,
// the one case handleRTO must still retransmit for even though
// bytesInFlight (which only counts sndQueue bytes) reads zero.
func (e *endpoint) pendingFin() bool {
	switch e.state {
	case StateFinWait1, StateClosing, StateLastAck:
		return true
	default:
		return false
	}
}

// retransmitOldest resends the oldest unacknowledged byte(s) starting at
// SND.UNA, without advancing SND.NXT: original_source/lib/tcp/tcpout.c's
// tcp_send_data only advances snd.nxt when seq == tcb->snd.nxt, i.e. on a
// segment's first transmission. sndQueue[0] always holds the byte at
// SND.UNA (acknowledged bytes are trimmed from its front as ACKs arrive),
// so the unacked region in flight is simply sndQueue[:bytesInFlight].
func (e *endpoint) retransmitOldest() {
	inFlight := int(e.tcb.bytesInFlight())
	if inFlight == 0 {
		if e.pendingFin() {
			finSeq := e.tcb.sndNxt.Add(seqnum.Size(^uint32(0))) // sndNxt - 1: the FIN's own sequence number
			e.buildAndSend(header.FlagFin|header.FlagAck, finSeq, e.tcb.rcvNxt, e.advertisedWindow(), nil, nil)
		}
		return
	}

	mss := int(e.tcb.mss)
	if mss == 0 {
		mss = header.DefaultMSS
	}
	end := inFlight
	if end > mss {
		end = mss
	}
	e.buildAndSend(header.FlagAck, e.tcb.sndUna, e.tcb.rcvNxt, e.advertisedWindow(), nil, e.sndQueue[:end])
}

// armTimeWait schedules the TIME-WAIT-to-CLOSED transition 2*MSL after
// entering TIME-WAIT, per spec.md §4.5.
func (e *endpoint) armTimeWait() {
	e.timeWaitHandle = e.timer.QueueRel(e.cfg.TimeWait, func(arg any) {
		ep := arg.(*endpoint)
		ep.mu.Lock()
		if ep.state == StateTimeWait {
			ep.setState(StateClosed)
		}
		ep.mu.Unlock()
		ep.signal() // wake run() so it can observe StateClosed and exit
	}, e)
}

// armDelayedACK schedules a pure ACK cfg.DelayedACK after an in-sequence
// data segment is accepted with nothing immediately queued to piggyback it
// on, per spec.md §4.5's delayed-ACK rule.
func (e *endpoint) armDelayedACK() {
	if e.delayedACKArmed {
		return
	}
	e.delayedACKArmed = true
	e.delayedACKHandle = e.timer.QueueRel(e.cfg.DelayedACK, func(arg any) {
		ep := arg.(*endpoint)
		ep.mu.Lock()
		ep.delayedACKArmed = false
		if ep.state.connected() {
			ep.sendEmpty(header.FlagAck)
		}
		ep.mu.Unlock()
	}, e)
}

func (e *endpoint) cancelDelayedACK() {
	if e.delayedACKArmed {
		e.timer.Cancel(e.delayedACKHandle)
		e.delayedACKArmed = false
	}
}

