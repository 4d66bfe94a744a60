// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import "encoding/binary"

// ARP field offsets and sizes, matching original_source/include/netstack/eth/arp.h's
// struct arp_hdr + struct arp_ipv4 laid out contiguously: hwtype(2)
// proto(2) hlen(1) plen(1) op(2) saddr(6) sipv4(4) daddr(6) dipv4(4) = 28
// octets total, per spec.md §6 "fixed 28-octet payload".
const (
	ARPSize = 28

	arpHTypeOffset = 0
	arpPTypeOffset = 2
	arpHLenOffset  = 4
	arpPLenOffset  = 5
	arpOpOffset    = 6
	arpSHAOffset   = 8
	arpSPAOffset   = 14
	arpTHAOffset   = 18
	arpTPAOffset   = 24
)

// ARP hardware type and operation codes, named after
// original_source/include/netstack/eth/arp.h's ARP_HW_ETHER, ARP_OP_REQUEST,
// ARP_OP_REPLY.
const (
	ARPHardwareEther uint16 = 1

	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

// ARP is an ARP-over-Ethernet/IPv4 packet backed by a byte slice.
type ARP []byte

// ARPFields are the decoded contents of an ARP packet.
type ARPFields struct {
	HardwareType       uint16
	ProtocolType       EthernetType
	Op                 uint16
	SenderHardwareAddr [EthernetAddressSize]byte
	SenderProtoAddr    [4]byte
	TargetHardwareAddr [EthernetAddressSize]byte
	TargetProtoAddr    [4]byte
}

// Encode writes f into a, which must be at least ARPSize bytes.
func (a ARP) Encode(f *ARPFields) {
	binary.BigEndian.PutUint16(a[arpHTypeOffset:], f.HardwareType)
	binary.BigEndian.PutUint16(a[arpPTypeOffset:], uint16(f.ProtocolType))
	a[arpHLenOffset] = EthernetAddressSize
	a[arpPLenOffset] = 4
	binary.BigEndian.PutUint16(a[arpOpOffset:], f.Op)
	copy(a[arpSHAOffset:], f.SenderHardwareAddr[:])
	copy(a[arpSPAOffset:], f.SenderProtoAddr[:])
	copy(a[arpTHAOffset:], f.TargetHardwareAddr[:])
	copy(a[arpTPAOffset:], f.TargetProtoAddr[:])
}

// IsValid reports whether a is a well-formed Ethernet/IPv4 ARP packet this
// stack knows how to process.
func (a ARP) IsValid() bool {
	if len(a) < ARPSize {
		return false
	}
	return a.HardwareType() == ARPHardwareEther &&
		a.ProtocolType() == EthernetTypeIPv4 &&
		a[arpHLenOffset] == EthernetAddressSize &&
		a[arpPLenOffset] == 4
}

func (a ARP) HardwareType() uint16        { return binary.BigEndian.Uint16(a[arpHTypeOffset:]) }
func (a ARP) ProtocolType() EthernetType  { return EthernetType(binary.BigEndian.Uint16(a[arpPTypeOffset:])) }
func (a ARP) Op() uint16                  { return binary.BigEndian.Uint16(a[arpOpOffset:]) }

func (a ARP) SenderHardwareAddr() [EthernetAddressSize]byte {
	var b [EthernetAddressSize]byte
	copy(b[:], a[arpSHAOffset:])
	return b
}

func (a ARP) SenderProtoAddr() [4]byte {
	var b [4]byte
	copy(b[:], a[arpSPAOffset:])
	return b
}

func (a ARP) TargetHardwareAddr() [EthernetAddressSize]byte {
	var b [EthernetAddressSize]byte
	copy(b[:], a[arpTHAOffset:])
	return b
}

func (a ARP) TargetProtoAddr() [4]byte {
	var b [4]byte
	copy(b[:], a[arpTPAOffset:])
	return b
}
