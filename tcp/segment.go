// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"time"

	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/buffer"
	"github.com/coolheart77/netstack/tcpip/header"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// segment is a parsed inbound (or pending-outbound) TCP segment. It holds a
// reference on the underlying frame so the segment queue can outlive the
// link layer's receive buffer, the same lifetime discipline
// _examples/coolheart77-netstack/tcpip/transport/tcp/connect.go's segment
// type gets from its refcounted buffer.VectorisedView, adapted here to this
// module's buffer.Frame.
type segment struct {
	frame *buffer.Frame

	id tcpip.Endpoint // four-tuple this segment belongs to

	sequenceNumber seqnum.Value
	ackNumber      seqnum.Value
	flags          uint8
	window         seqnum.Size
	mss            uint16
	wndScale       int // -1 if the peer did not advertise one

	data      []byte // payload, aliasing frame's storage
	timestamp time.Time
}

// newSegment parses a TCP header plus payload out of f, which must already
// have had its Ethernet/IPv4 headers consumed (see link.Interface).
func newSegment(f *buffer.Frame, id tcpip.Endpoint) *segment {
	tcpHdr := header.TCP(f.Payload())
	s := &segment{
		frame:          f.IncRef(),
		id:             id,
		sequenceNumber: seqnum.Value(tcpHdr.SequenceNumber()),
		ackNumber:      seqnum.Value(tcpHdr.AckNumber()),
		flags:          tcpHdr.Flags(),
		window:         seqnum.Size(tcpHdr.WindowSize()),
		wndScale:       -1,
		data:           tcpHdr.Payload(),
		timestamp:      f.Timestamp,
	}
	parseOptions(tcpHdr.Options(), s)
	return s
}

func (s *segment) logicalLen() seqnum.Size {
	l := seqnum.Size(len(s.data))
	if s.flags&header.FlagSyn != 0 {
		l++
	}
	if s.flags&header.FlagFin != 0 {
		l++
	}
	return l
}

// release drops the segment's reference on its underlying frame. Callers
// must not touch s.data after calling release.
func (s *segment) release() {
	if s.frame != nil {
		s.frame.DecRef()
		s.frame = nil
	}
}

// Segment is the stack package's handle to a parsed inbound TCP segment,
// used to hand frames from the link/IPv4 demux path into an Endpoint or
// Listener without exposing this package's internal segment fields.
type Segment = segment

// NewSegmentForDispatch parses a TCP header plus payload out of f (which
// must already have had its Ethernet/IPv4 headers consumed) for delivery to
// the endpoint or listener matching id's four-tuple.
func NewSegmentForDispatch(f *buffer.Frame, id tcpip.Endpoint) *Segment {
	return newSegment(f, id)
}

// Deliver hands an inbound segment to this endpoint's processing loop.
func (ep *Endpoint) Deliver(s *Segment) {
	ep.e.deliver(s)
}

// Release drops a dispatched segment's reference on its underlying frame,
// for callers (the stack package's demux path) that end up with nowhere to
// deliver it.
func (s *Segment) Release() {
	s.release()
}
