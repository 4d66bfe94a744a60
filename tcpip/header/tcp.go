// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import "encoding/binary"

// TCPMinimumSize is the size of a TCP header with no options.
const TCPMinimumSize = 20

const (
	tcpSrcPortOffset  = 0
	tcpDstPortOffset  = 2
	tcpSeqNumOffset   = 4
	tcpAckNumOffset   = 8
	tcpDataOffOffset  = 12
	tcpFlagsOffset    = 13
	tcpWinSizeOffset  = 14
	tcpChecksumOffset = 16
	tcpUrgPtrOffset   = 18
)

// TCP flags, per RFC 793 figure 3. Named to match the flag* constants the
// teacher's tcpip/transport/tcp package assumes (flagSyn, flagAck, ... are
// referenced directly by connect.go).
const (
	FlagFin uint8 = 1 << 0
	FlagSyn uint8 = 1 << 1
	FlagRst uint8 = 1 << 2
	FlagPsh uint8 = 1 << 3
	FlagAck uint8 = 1 << 4
	FlagUrg uint8 = 1 << 5
)

// TCP option kinds, named after the teacher's header.TCPOption* constants
// referenced in connect.go's parseSynOptions.
const (
	TCPOptionEOL = 0
	TCPOptionNOP = 1
	TCPOptionMSS = 2
	TCPOptionWS  = 3
)

// DefaultMSS is the default maximum segment size assumed in the absence of
// an MSS option, per RFC 1122 and spec.md §6.
const DefaultMSS = 536

// TCPFields are the decoded fields of a TCP header.
type TCPFields struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	DataOffset uint8 // header length in bytes, including options
	Flags      uint8
	WindowSize uint16
}

// TCP is a TCP header (plus any options) backed by a byte slice, in the
// style of the teacher's header.TCP.
type TCP []byte

// Encode writes f into t's fixed header region. The checksum field is left
// zero; options, if any, must be written by the caller into
// t[TCPMinimumSize:f.DataOffset] before computing the checksum.
func (t TCP) Encode(f *TCPFields) {
	binary.BigEndian.PutUint16(t[tcpSrcPortOffset:], f.SrcPort)
	binary.BigEndian.PutUint16(t[tcpDstPortOffset:], f.DstPort)
	binary.BigEndian.PutUint32(t[tcpSeqNumOffset:], f.SeqNum)
	binary.BigEndian.PutUint32(t[tcpAckNumOffset:], f.AckNum)
	t[tcpDataOffOffset] = (f.DataOffset / 4) << 4
	t[tcpFlagsOffset] = f.Flags
	binary.BigEndian.PutUint16(t[tcpWinSizeOffset:], f.WindowSize)
	binary.BigEndian.PutUint16(t[tcpChecksumOffset:], 0)
	binary.BigEndian.PutUint16(t[tcpUrgPtrOffset:], 0)
}

func (t TCP) SourcePort() uint16      { return binary.BigEndian.Uint16(t[tcpSrcPortOffset:]) }
func (t TCP) DestinationPort() uint16 { return binary.BigEndian.Uint16(t[tcpDstPortOffset:]) }
func (t TCP) SequenceNumber() uint32  { return binary.BigEndian.Uint32(t[tcpSeqNumOffset:]) }
func (t TCP) AckNumber() uint32       { return binary.BigEndian.Uint32(t[tcpAckNumOffset:]) }
func (t TCP) Flags() uint8            { return t[tcpFlagsOffset] }
func (t TCP) WindowSize() uint16      { return binary.BigEndian.Uint16(t[tcpWinSizeOffset:]) }
func (t TCP) Checksum() uint16        { return binary.BigEndian.Uint16(t[tcpChecksumOffset:]) }

// DataOffset returns the header length in bytes, including options.
func (t TCP) DataOffset() int {
	return int(t[tcpDataOffOffset]>>4) * 4
}

// Options returns the bytes between the fixed header and DataOffset.
func (t TCP) Options() []byte {
	return t[TCPMinimumSize:t.DataOffset()]
}

// Payload returns the bytes after the header.
func (t TCP) Payload() []byte {
	return t[t.DataOffset():]
}

// SetChecksum writes the checksum field.
func (t TCP) SetChecksum(v uint16) {
	binary.BigEndian.PutUint16(t[tcpChecksumOffset:], v)
}

// CalculateChecksum computes the TCP checksum over t (header plus any
// trailing payload already present in the slice), combined with a partial
// checksum accumulator (typically the IPv4 pseudo-header sum, which already
// carries the TCP length), per spec.md §6. The result is not complemented;
// callers store its complement with SetChecksum.
func (t TCP) CalculateChecksum(partial uint16, totalLen uint16) uint16 {
	sum := ChecksumCombine(partial, Checksum(t, 0))
	_ = totalLen // unused: the length is already in partial's pseudo-header sum; kept for signature parity with the teacher's CalculateChecksum(xsum, length)
	return sum
}

// FlagString renders the set flags for logging, e.g. "SYN,ACK".
func FlagString(flags uint8) string {
	var out []byte
	add := func(f uint8, name string) {
		if flags&f != 0 {
			if len(out) > 0 {
				out = append(out, ',')
			}
			out = append(out, name...)
		}
	}
	add(FlagFin, "FIN")
	add(FlagSyn, "SYN")
	add(FlagRst, "RST")
	add(FlagPsh, "PSH")
	add(FlagAck, "ACK")
	add(FlagUrg, "URG")
	if len(out) == 0 {
		return "none"
	}
	return string(out)
}
