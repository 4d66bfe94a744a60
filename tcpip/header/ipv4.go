// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import "encoding/binary"

// IPv4AddressSize is the number of octets in an IPv4 address.
const IPv4AddressSize = 4

// IPv4MinimumSize is the length of an IPv4 header with no options, per
// spec.md §6: "IPv4 (RFC 791) with no options on emit; parse accepts
// options but ignores them."
const IPv4MinimumSize = 20

const (
	ipv4VersIHLOffset  = 0
	ipv4TOSOffset      = 1
	ipv4TotalLenOffset = 2
	ipv4IDOffset       = 4
	ipv4FlagsFragOff   = 6
	ipv4TTLOffset      = 8
	ipv4ProtocolOffset = 9
	ipv4ChecksumOffset = 10
	ipv4SrcOffset      = 12
	ipv4DstOffset      = 16
)

// ProtocolNumber values used in the IPv4 protocol field.
const (
	ICMPProtocolNumber = 1
	TCPProtocolNumber  = 6
	UDPProtocolNumber  = 17
)

// IPv4Fields are the decoded fields of an IPv4 header.
type IPv4Fields struct {
	TOS            uint8
	TotalLength    uint16
	ID             uint16
	TTL            uint8
	Protocol       uint8
	SrcAddr        [IPv4AddressSize]byte
	DstAddr        [IPv4AddressSize]byte
}

// IPv4 is an IPv4 header (plus any options) backed by a byte slice.
type IPv4 []byte

// Encode writes f into the fixed portion of i (the first IPv4MinimumSize
// bytes); the checksum field is left zero for the caller to fill in after
// computing it over the whole header.
func (i IPv4) Encode(f *IPv4Fields) {
	i[ipv4VersIHLOffset] = (4 << 4) | (IPv4MinimumSize / 4)
	i[ipv4TOSOffset] = f.TOS
	binary.BigEndian.PutUint16(i[ipv4TotalLenOffset:], f.TotalLength)
	binary.BigEndian.PutUint16(i[ipv4IDOffset:], f.ID)
	binary.BigEndian.PutUint16(i[ipv4FlagsFragOff:], 0)
	i[ipv4TTLOffset] = f.TTL
	i[ipv4ProtocolOffset] = f.Protocol
	binary.BigEndian.PutUint16(i[ipv4ChecksumOffset:], 0)
	copy(i[ipv4SrcOffset:], f.SrcAddr[:])
	copy(i[ipv4DstOffset:], f.DstAddr[:])
}

// HeaderLength returns the header length in bytes, including any options,
// which are parsed-over but ignored per spec.md §6.
func (i IPv4) HeaderLength() int {
	return int(i[ipv4VersIHLOffset]&0x0f) * 4
}

func (i IPv4) TotalLength() uint16 { return binary.BigEndian.Uint16(i[ipv4TotalLenOffset:]) }
func (i IPv4) Protocol() uint8     { return i[ipv4ProtocolOffset] }
func (i IPv4) TTL() uint8          { return i[ipv4TTLOffset] }
func (i IPv4) Checksum() uint16    { return binary.BigEndian.Uint16(i[ipv4ChecksumOffset:]) }

func (i IPv4) SourceAddress() [IPv4AddressSize]byte {
	var b [IPv4AddressSize]byte
	copy(b[:], i[ipv4SrcOffset:])
	return b
}

func (i IPv4) DestinationAddress() [IPv4AddressSize]byte {
	var b [IPv4AddressSize]byte
	copy(b[:], i[ipv4DstOffset:])
	return b
}

// SetChecksum writes the checksum field.
func (i IPv4) SetChecksum(v uint16) {
	binary.BigEndian.PutUint16(i[ipv4ChecksumOffset:], v)
}

// CalculateChecksum computes the IPv4 header checksum over the header
// region only (options included, payload excluded), with the checksum
// field treated as zero.
func (i IPv4) CalculateChecksum() uint16 {
	hdr := make([]byte, i.HeaderLength())
	copy(hdr, i[:i.HeaderLength()])
	hdr[ipv4ChecksumOffset] = 0
	hdr[ipv4ChecksumOffset+1] = 0
	return ^Checksum(hdr, 0)
}

// IsValid reports whether i is long enough and self-consistent to parse.
func (i IPv4) IsValid(pktSize int) bool {
	if len(i) < IPv4MinimumSize {
		return false
	}
	hlen := i.HeaderLength()
	if hlen < IPv4MinimumSize || hlen > len(i) {
		return false
	}
	return int(i.TotalLength()) <= pktSize
}

// PseudoHeaderChecksum computes the partial checksum of the IPv4
// pseudo-header used by TCP: (src, dst, zero, protocol, tcp-length), per
// spec.md's GLOSSARY entry for "Pseudo-header".
func PseudoHeaderChecksum(protocol uint8, srcAddr, dstAddr [IPv4AddressSize]byte, totalLen uint16) uint16 {
	var phdr [12]byte
	copy(phdr[0:4], srcAddr[:])
	copy(phdr[4:8], dstAddr[:])
	phdr[8] = 0
	phdr[9] = protocol
	binary.BigEndian.PutUint16(phdr[10:12], totalLen)
	return Checksum(phdr[:], 0)
}
