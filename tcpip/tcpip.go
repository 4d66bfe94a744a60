// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tcpip holds the types shared by every layer of the stack:
// protocol-tagged addresses and the outcome values returned by blocking
// operations in place of exceptions.
package tcpip

import "fmt"

// NetworkProtocolNumber identifies a network-layer (or link-layer, for the
// purposes of address tagging) protocol, by its EtherType or an internal
// reserved value for raw link addresses.
type NetworkProtocolNumber uint32

// Protocol numbers used to tag addresses, per spec.md §3 "Address: a tagged
// value carrying a protocol tag ... and the corresponding raw address
// bytes."
const (
	EtherProtocolNumber NetworkProtocolNumber = 0x0001
	IPv4ProtocolNumber  NetworkProtocolNumber = 0x0800
	IPv6ProtocolNumber  NetworkProtocolNumber = 0x86DD
)

// TransportProtocolNumber identifies a transport-layer protocol.
type TransportProtocolNumber uint32

// Address is a tagged protocol address: a protocol tag plus its raw bytes.
// Two addresses are equal iff both the tag and the bytes are identical.
type Address struct {
	Proto NetworkProtocolNumber
	Addr  string // raw address bytes, stored as a string for cheap equality/hashing
}

// NewAddress builds a tagged Address from raw bytes.
func NewAddress(proto NetworkProtocolNumber, b []byte) Address {
	return Address{Proto: proto, Addr: string(b)}
}

// Bytes returns the raw address bytes.
func (a Address) Bytes() []byte {
	return []byte(a.Addr)
}

// Equal reports whether a and b carry the same protocol tag and bytes.
func (a Address) Equal(b Address) bool {
	return a.Proto == b.Proto && a.Addr == b.Addr
}

func (a Address) String() string {
	switch a.Proto {
	case IPv4ProtocolNumber:
		if len(a.Addr) == 4 {
			return fmt.Sprintf("%d.%d.%d.%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3])
		}
	case EtherProtocolNumber:
		if len(a.Addr) == 6 {
			return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
				a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Addr[4], a.Addr[5])
		}
	}
	return fmt.Sprintf("%x", []byte(a.Addr))
}

// FullAddress is a layer-3 address plus a transport port, the unit
// `connect`/`send`/`recv`/`shutdown` operate on.
type FullAddress struct {
	Addr Address
	Port uint16
}

// Endpoint identifies a TCP connection by its four-tuple.
type Endpoint struct {
	LocalAddr   Address
	LocalPort   uint16
	RemoteAddr  Address
	RemotePort  uint16
}
