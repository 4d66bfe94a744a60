// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import "encoding/binary"

const (
	// EthernetAddressSize is the number of octets in an Ethernet hardware
	// address, matching original_source/lib/netstack/include/netstack/addr.h's
	// ETH_ADDR_LEN.
	EthernetAddressSize = 6

	// EthernetMinimumSize is the size of an Ethernet II header: dst, src,
	// ethertype (spec.md §6).
	EthernetMinimumSize = 14

	ethDstOffset  = 0
	ethSrcOffset  = 6
	ethTypeOffset = 12
)

// EthernetType is the EtherType field of an Ethernet II frame.
type EthernetType uint16

const (
	EthernetTypeARP  EthernetType = 0x0806
	EthernetTypeIPv4 EthernetType = 0x0800
	EthernetTypeIPv6 EthernetType = 0x86DD
)

// EthernetFields are the decoded fields of an Ethernet II header.
type EthernetFields struct {
	DstAddr [EthernetAddressSize]byte
	SrcAddr [EthernetAddressSize]byte
	Type    EthernetType
}

// Ethernet is an Ethernet II header backed by a byte slice, in the style of
// the teacher's header.TCP.
type Ethernet []byte

// Encode writes f into e, which must be at least EthernetMinimumSize bytes.
func (e Ethernet) Encode(f *EthernetFields) {
	copy(e[ethDstOffset:], f.DstAddr[:])
	copy(e[ethSrcOffset:], f.SrcAddr[:])
	binary.BigEndian.PutUint16(e[ethTypeOffset:], uint16(f.Type))
}

// DestinationAddress returns the destination hardware address.
func (e Ethernet) DestinationAddress() [EthernetAddressSize]byte {
	var a [EthernetAddressSize]byte
	copy(a[:], e[ethDstOffset:])
	return a
}

// SourceAddress returns the source hardware address.
func (e Ethernet) SourceAddress() [EthernetAddressSize]byte {
	var a [EthernetAddressSize]byte
	copy(a[:], e[ethSrcOffset:])
	return a
}

// Type returns the EtherType field, converted to host order exactly once at
// parse time (spec.md §4.5 step 2's byte-order discipline, applied
// uniformly to every header in this package).
func (e Ethernet) Type() EthernetType {
	return EthernetType(binary.BigEndian.Uint16(e[ethTypeOffset:]))
}
