// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tcp implements the TCP connection engine of spec.md §4.5: the
// per-socket state machine, sequence-space bookkeeping, retransmission, and
// the blocking socket API of spec.md §9. It is grounded on
// _examples/coolheart77-netstack/tcpip/transport/tcp/connect.go's handshake
// and protocol-loop structure, generalized from that fragment's gVisor stack
// plumbing to the sequence buffer, neighbor table, and condition-variable
// blocking model the rest of this module builds.
package tcp

// State is a TCP connection state, per spec.md §3's enumeration and
// RFC 793 figure 6.
type State int

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN-SENT"
	case StateSynReceived:
		return "SYN-RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN-WAIT-1"
	case StateFinWait2:
		return "FIN-WAIT-2"
	case StateCloseWait:
		return "CLOSE-WAIT"
	case StateClosing:
		return "CLOSING"
	case StateLastAck:
		return "LAST-ACK"
	case StateTimeWait:
		return "TIME-WAIT"
	default:
		return "?"
	}
}

// connected reports whether a data-bearing segment may legitimately arrive
// in this state (i.e. the state is past the handshake and before full
// teardown).
func (s State) connected() bool {
	switch s {
	case StateEstablished, StateFinWait1, StateFinWait2, StateCloseWait, StateClosing, StateLastAck:
		return true
	default:
		return false
	}
}
