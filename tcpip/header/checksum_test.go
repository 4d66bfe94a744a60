// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import "testing"

func TestChecksumRoundTrip(t *testing.T) {
	hdr := make(TCP, TCPMinimumSize)
	hdr.Encode(&TCPFields{
		SrcPort:    40000,
		DstPort:    80,
		SeqNum:     1000,
		AckNum:     2000,
		DataOffset: TCPMinimumSize,
		Flags:      FlagAck | FlagPsh,
		WindowSize: 65535,
	})
	payload := []byte("hello, tcp")
	full := append(append(TCP{}, hdr...), payload...)

	pseudo := PseudoHeaderChecksum(TCPProtocolNumber, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, uint16(len(full)))
	sum := TCP(full).CalculateChecksum(pseudo, uint16(len(full)))
	TCP(full).SetChecksum(^sum)

	if !ChecksumVerify(full, pseudo) {
		t.Fatalf("checksum did not verify after round-trip")
	}

	full[len(full)-1] ^= 0xff
	if ChecksumVerify(full, pseudo) {
		t.Fatalf("checksum verified over corrupted payload")
	}
}

func TestIPv4ChecksumRoundTrip(t *testing.T) {
	hdr := make(IPv4, IPv4MinimumSize)
	hdr.Encode(&IPv4Fields{
		TOS:         0,
		TotalLength: IPv4MinimumSize,
		ID:          1,
		TTL:         64,
		Protocol:    TCPProtocolNumber,
		SrcAddr:     [4]byte{10, 0, 0, 2},
		DstAddr:     [4]byte{10, 0, 0, 1},
	})
	hdr.SetChecksum(hdr.CalculateChecksum())

	if !ChecksumVerify(hdr, 0) {
		t.Fatalf("ipv4 header checksum did not verify")
	}
}

func TestFlagString(t *testing.T) {
	cases := []struct {
		flags uint8
		want  string
	}{
		{0, "none"},
		{FlagSyn, "SYN"},
		{FlagSyn | FlagAck, "SYN,ACK"},
		{FlagFin | FlagAck, "FIN,ACK"},
	}
	for _, c := range cases {
		if got := FlagString(c.flags); got != c.want {
			t.Errorf("FlagString(%x) = %q, want %q", c.flags, got, c.want)
		}
	}
}
