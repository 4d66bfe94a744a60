// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"encoding/binary"

	"github.com/coolheart77/netstack/tcpip/header"
)

// maxWndScale is the maximum allowed window scale shift count, per RFC 1323
// section 2.3 page 11.
const maxWndScale = 14

// parseOptions walks a TCP option list and records the MSS and window-scale
// options (the only two this stack negotiates, per spec.md §4.4) into s.
// Grounded on connect.go's parseSynOptions, generalized to populate a
// segment instead of a dedicated options struct.
func parseOptions(b []byte, s *segment) {
	for len(b) > 0 {
		switch b[0] {
		case header.TCPOptionEOL:
			return
		case header.TCPOptionNOP:
			b = b[1:]
		case header.TCPOptionMSS:
			if len(b) < 4 || b[1] != 4 {
				return
			}
			s.mss = binary.BigEndian.Uint16(b[2:4])
			b = b[4:]
		case header.TCPOptionWS:
			if len(b) < 3 || b[1] != 3 {
				return
			}
			shift := int(b[2])
			if shift > maxWndScale {
				shift = maxWndScale
			}
			s.wndScale = shift
			b = b[3:]
		default:
			if len(b) < 2 || int(b[1]) < 2 || int(b[1]) > len(b) {
				return
			}
			b = b[b[1]:]
		}
	}
}

// findWndScale picks the window scale shift to advertise for a receive
// buffer of the given size, per RFC 1323 section 2.2: the smallest shift
// such that 0xffff<<shift is at least as large as wnd.
func findWndScale(wnd uint32) int {
	if wnd < 0x10000 {
		return 0
	}
	max := uint32(0xffff)
	s := 0
	for wnd > max && s < maxWndScale {
		s++
		max <<= 1
	}
	return s
}

// encodeOptions writes the MSS and (if wndScale >= 0) window-scale options
// into buf, returning the number of bytes written, padded to a 4-byte
// boundary with NOPs as connect.go's sendSynTCP does.
func encodeOptions(buf []byte, mss uint16, wndScale int) int {
	n := 0
	if mss != 0 {
		buf[n] = header.TCPOptionMSS
		buf[n+1] = 4
		binary.BigEndian.PutUint16(buf[n+2:n+4], mss)
		n += 4
	}
	if wndScale >= 0 {
		buf[n] = header.TCPOptionNOP
		buf[n+1] = header.TCPOptionWS
		buf[n+2] = 3
		buf[n+3] = byte(wndScale)
		n += 4
	}
	for n%4 != 0 {
		buf[n] = header.TCPOptionNOP
		n++
	}
	return n
}
