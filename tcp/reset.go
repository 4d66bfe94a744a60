// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// SendReset emits a TCP RST in reply to seg, for a segment that matched no
// listener or endpoint in the stack package's demux table, per spec.md
// §4.5 step 3 and RFC 793 §3.4's reset-generation rule. It does nothing if
// seg itself carries RST, since resetting a reset would storm forever.
//
// Grounded on connect.go's sendTCP/sendSynTCP shape (build a bare TCP
// header, checksum it against route's addresses, hand it to route.Send),
// narrowed here to a header-only segment with no associated endpoint.
func SendReset(route *Route, seg *Segment) *tcpip.Error {
	if seg.flags&header.FlagRst != 0 {
		return nil
	}

	var flags uint8 = header.FlagRst
	var seq, ack seqnum.Value
	if seg.flags&header.FlagAck != 0 {
		// RFC 793 §3.4: if the incoming segment has an ACK field, the
		// reset takes its sequence number from that ACK.
		seq = seg.ackNumber
	} else {
		flags |= header.FlagAck
		ack = seg.sequenceNumber.Add(seg.logicalLen())
	}

	buf := make([]byte, header.TCPMinimumSize)
	h := header.TCP(buf)
	h.Encode(&header.TCPFields{
		SrcPort:    seg.id.LocalPort,
		DstPort:    seg.id.RemotePort,
		SeqNum:     uint32(seq),
		AckNum:     uint32(ack),
		DataOffset: header.TCPMinimumSize,
		Flags:      flags,
		WindowSize: 0,
	})

	var src, dst [4]byte
	copy(src[:], route.LocalAddr.Bytes())
	copy(dst[:], route.RemoteAddr.Bytes())
	xsum := header.PseudoHeaderChecksum(header.TCPProtocolNumber, src, dst, uint16(len(buf)))
	h.SetChecksum(^h.CalculateChecksum(xsum, uint16(len(buf))))

	return route.Send(buf)
}
