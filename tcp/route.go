// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import "github.com/coolheart77/netstack/tcpip"

// Route is everything an endpoint needs to emit a segment, supplied by the
// stack package. It deliberately knows nothing about Ethernet, ARP, or
// gopacket: those concerns live below the line spec.md §1 draws around this
// package ("out of scope as a collaborator"), in the link package.
type Route struct {
	LocalAddr  tcpip.Address
	RemoteAddr tcpip.Address
	MTU        int

	// Send transmits a fully-formed IPv4 payload (TCP header plus
	// options plus data) to RemoteAddr. The stack package's Send
	// resolves RemoteAddr's hardware address (via
	// neighbor.Table.Resolve) and hands the payload to the link layer,
	// which wraps it in an IPv4 header and Ethernet frame and writes it
	// to the wire.
	Send func(payload []byte) *tcpip.Error
}
