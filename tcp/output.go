// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// buildAndSend assembles a TCP segment (header, options, data) with a
// correct checksum and hands it to the route for IPv4/Ethernet
// encapsulation. Header fields go to wire byte order only through
// header.TCP's Encode (options through encodeOptions); the tcb and segment
// fields this package works with are host order, resolving spec.md §9's
// byte-order Open Question the way original_source/lib/tcp/tcpout.c's
// tcp_init_header left ambiguous.
func (e *endpoint) buildAndSend(flags uint8, seq, ack seqnum.Value, wnd seqnum.Size, opts []byte, data []byte) *tcpip.Error {
	headerLen := header.TCPMinimumSize + len(opts)
	buf := make([]byte, headerLen+len(data))
	copy(buf[headerLen:], data)
	copy(buf[header.TCPMinimumSize:headerLen], opts)

	if wnd > 0xffff {
		wnd = 0xffff // the window field is 16 bits and no window scaling is applied to it
	}

	h := header.TCP(buf)
	h.Encode(&header.TCPFields{
		SrcPort:    e.id.LocalPort,
		DstPort:    e.id.RemotePort,
		SeqNum:     uint32(seq),
		AckNum:     uint32(ack),
		DataOffset: uint8(headerLen),
		Flags:      flags,
		WindowSize: uint16(wnd),
	})

	var src, dst [4]byte
	copy(src[:], e.route.LocalAddr.Bytes())
	copy(dst[:], e.route.RemoteAddr.Bytes())
	xsum := header.PseudoHeaderChecksum(header.TCPProtocolNumber, src, dst, uint16(len(buf)))
	h.SetChecksum(^h.CalculateChecksum(xsum, uint16(len(buf))))

	return e.route.Send(buf)
}

// sendSynSegment emits the handshake's SYN or SYN-ACK, carrying an MSS
// option (cfg.MSS) and, whenever rcvWndScale >= 0, a window-scale option,
// after connect.go's sendSynTCP. Whether the peer advertised window scaling
// is not checked, and peerMSS is not used.
func (e *endpoint) sendSynSegment(flags uint8, seq, ack seqnum.Value, wnd seqnum.Size, peerMSS uint16, rcvWndScale int) *tcpip.Error {
	mss := e.cfg.MSS
	optBuf := make([]byte, 8)
	n := encodeOptions(optBuf, mss, rcvWndScale)
	return e.buildAndSend(flags, seq, ack, wnd, optBuf[:n], nil)
}

// sendEmpty emits a segment carrying no payload, e.g. a bare ACK, FIN, or
// RST, advertising the endpoint's current receive window.
func (e *endpoint) sendEmpty(flags uint8) *tcpip.Error {
	wnd := e.advertisedWindow()
	err := e.buildAndSend(flags, e.tcb.sndNxt, e.tcb.rcvNxt, wnd, nil, nil)
	if flags&header.FlagFin != 0 && err == nil {
		e.tcb.sndNxt = e.tcb.sndNxt.Add(1)
	}
	return err
}

// advertisedWindow returns the receive window to advertise, clamped to
// what rcv has room for.
func (e *endpoint) advertisedWindow() seqnum.Size {
	if e.rcv == nil {
		return e.tcb.rcvWnd
	}
	used := e.rcv.Base().Size(e.tcb.rcvNxt) // in-order bytes not yet read
	cap := seqnum.Size(e.rcv.Capacity())
	if used >= cap {
		return 0
	}
	return cap - used
}

// sendData drains sndQueue from SND.NXT onward, segmenting to the peer's
// MSS and respecting SND.WND, then arms the retransmission timer if any new
// data was actually put on the wire. Grounded on connect.go's handleWrite,
// generalized to this module's plain byte-slice send queue and the
// original_source/lib/tcp/tcpout.c invariant that SND.NXT only advances on
// a segment's *first* transmission, never on a retransmission.
func (e *endpoint) sendData() *tcpip.Error {
	mss := seqnum.Size(e.tcb.mss)
	if mss == 0 {
		mss = header.DefaultMSS
	}

	sent := false
	for {
		off := int(e.tcb.sndUna.Size(e.tcb.sndNxt)) // bytes of sndQueue already transmitted
		queued := len(e.sndQueue) - off
		if queued <= 0 {
			break
		}
		avail := e.tcb.sndNxt.Size(e.tcb.sndUna.Add(e.tcb.sndWnd)) // window room beyond sndNxt
		if avail == 0 {
			break
		}
		segLen := seqnum.Size(queued)
		if segLen > avail {
			segLen = avail
		}
		if segLen > mss {
			segLen = mss
		}
		data := e.sndQueue[off : off+int(segLen)]

		flags := header.FlagAck
		last := off+int(segLen) == len(e.sndQueue) && e.sndClosed
		if last {
			flags |= header.FlagPsh
		}

		seq := e.tcb.sndNxt
		if err := e.buildAndSend(flags, seq, e.tcb.rcvNxt, e.advertisedWindow(), nil, data); err != nil {
			return err
		}
		e.tcb.sndNxt = e.tcb.sndNxt.Add(segLen) // first transmission only: retransmitOldest never advances sndNxt
		sent = true

		if int(segLen) < queued {
			continue
		}
		break
	}

	if e.sndClosed && int(e.tcb.sndUna.Size(e.tcb.sndNxt)) == len(e.sndQueue) {
		if e.state == StateEstablished || e.state == StateCloseWait {
			next := StateFinWait1
			if e.state == StateCloseWait {
				next = StateLastAck
			}
			if err := e.sendEmpty(header.FlagFin | header.FlagAck); err != nil {
				return err
			}
			e.setState(next)
			sent = true
		}
	}

	if sent {
		e.armRTO()
	}
	return nil
}
