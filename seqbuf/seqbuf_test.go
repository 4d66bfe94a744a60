// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqbuf

import (
	"testing"

	"github.com/coolheart77/netstack/tcpip/seqnum"
)

func TestWriteReadContiguous(t *testing.T) {
	s := NewSeqBuf(100, 64)
	if err := s.Write(100, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dst := make([]byte, 5)
	if n := s.Read(100, dst, 5); n != 5 || string(dst) != "hello" {
		t.Fatalf("Read = %d, %q, want 5, \"hello\"", n, dst)
	}
}

func TestOutOfOrderReassembly(t *testing.T) {
	// spec.md §8 scenario 6: segments [seq=100,len=10] and [seq=120,len=10]
	// arrive before [seq=110,len=10].
	s := NewSeqBuf(100, 64)
	s.Write(100, bytesOf(10, 'a'))
	s.Write(120, bytesOf(10, 'c'))

	if n := s.Available(100); n != 10 {
		t.Fatalf("Available after two writes with a gap = %d, want 10", n)
	}

	s.Write(110, bytesOf(10, 'b'))
	if n := s.Available(100); n != 30 {
		t.Fatalf("Available after filling the gap = %d, want 30", n)
	}

	dst := make([]byte, 30)
	if n := s.Read(100, dst, 30); n != 30 {
		t.Fatalf("Read = %d, want 30", n)
	}
	want := string(bytesOf(10, 'a')) + string(bytesOf(10, 'b')) + string(bytesOf(10, 'c'))
	if string(dst) != want {
		t.Fatalf("Read = %q, want %q", dst, want)
	}
}

func TestDuplicateWriteIsIdempotent(t *testing.T) {
	s := NewSeqBuf(0, 32)
	s.Write(0, []byte("abcd"))
	s.Write(0, []byte("abcd"))
	if n := s.Available(0); n != 4 {
		t.Fatalf("Available = %d, want 4", n)
	}
}

func TestWriteBeyondCapacityFails(t *testing.T) {
	s := NewSeqBuf(0, 16)
	if err := s.Write(16, []byte("x")); err != ErrNoSpace {
		t.Fatalf("Write at base+capacity: err = %v, want ErrNoSpace", err)
	}
}

func TestConsumeAdvancesBase(t *testing.T) {
	s := NewSeqBuf(0, 16)
	s.Write(0, []byte("abcdef"))
	s.Consume(3)
	if s.Base() != seqnum.Value(3) {
		t.Fatalf("Base() = %d, want 3", s.Base())
	}
	dst := make([]byte, 3)
	if n := s.Read(3, dst, 3); n != 3 || string(dst) != "def" {
		t.Fatalf("Read after consume = %d, %q, want 3, \"def\"", n, dst)
	}
}

func TestSequenceWraparound(t *testing.T) {
	// base near the top of the 32-bit space, to exercise modular
	// arithmetic rather than plain integer comparisons.
	base := seqnum.Value(0xfffffffa)
	s := NewSeqBuf(base, 16)
	if err := s.Write(base, []byte("wraps")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dst := make([]byte, 5)
	if n := s.Read(base, dst, 5); n != 5 || string(dst) != "wraps" {
		t.Fatalf("Read across wraparound = %d, %q, want 5, \"wraps\"", n, dst)
	}
}

func bytesOf(n int, c byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return b
}
