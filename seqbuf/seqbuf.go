// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqbuf implements the sequence buffer of spec.md §4.1: a byte
// ring keyed by a 32-bit wrap-around sequence number, supporting sparse
// writes (out-of-order segments land at their real offset) and contiguous
// reads (only the unbroken prefix is visible to the reader).
//
// It plays the role of original_source/lib/tcp/tcpout.c's
// seqbuf_available/seqbuf_read, generalized with the write/consume
// operations spec.md names explicitly.
package seqbuf

import "github.com/coolheart77/netstack/tcpip/seqnum"

// SeqBuf is a fixed-capacity ring buffer addressed by absolute sequence
// number rather than by buffer offset. It is not safe for concurrent use;
// callers serialize access with the owning socket's lock, per spec.md §5.
type SeqBuf struct {
	ring []byte

	// base is the sequence number of the byte at ring[head]; bytes before
	// base have been consumed and released.
	base seqnum.Value
	head int

	// filled tracks, per ring offset, which offsets hold valid data, so
	// that sparse out-of-order writes can be distinguished from gaps.
	filled []bool

	// end is the sequence number one past the highest byte ever written;
	// it never retreats.
	end seqnum.Value
}

// NewSeqBuf creates a sequence buffer of the given capacity in bytes,
// initially based at seq.
func NewSeqBuf(seq seqnum.Value, capacity int) *SeqBuf {
	return &SeqBuf{
		ring:   make([]byte, capacity),
		filled: make([]bool, capacity),
		base:   seq,
		end:    seq,
	}
}

// Capacity returns the size of the ring in bytes.
func (s *SeqBuf) Capacity() int {
	return len(s.ring)
}

// Base returns the current base sequence number (the lowest
// not-yet-consumed byte).
func (s *SeqBuf) Base() seqnum.Value {
	return s.base
}

// End returns the logical end: one past the highest sequence number ever
// written.
func (s *SeqBuf) End() seqnum.Value {
	return s.end
}

func (s *SeqBuf) offset(seq seqnum.Value) int {
	return (s.head + int(s.base.Size(seq))) % len(s.ring)
}

// Write places bytes at absolute sequence seq, extending the logical end if
// seq+len(bytes) advances past it. Duplicate (identically sequenced) data
// overwrites itself, a no-op in effect. Returns ErrNoSpace if seq is more
// than capacity beyond the base.
func (s *SeqBuf) Write(seq seqnum.Value, bytes []byte) error {
	if len(bytes) == 0 {
		return nil
	}
	if s.base.Size(seq) >= seqnum.Size(len(s.ring)) {
		return ErrNoSpace
	}
	n := len(bytes)
	if over := int(s.base.Size(seq)) + n - len(s.ring); over > 0 {
		n -= over
	}
	for i := 0; i < n; i++ {
		off := s.offset(seq.Add(seqnum.Size(i)))
		s.ring[off] = bytes[i]
		s.filled[off] = true
	}
	if newEnd := seq.Add(seqnum.Size(n)); s.end.LessThan(newEnd) {
		s.end = newEnd
	}
	if n < len(bytes) {
		return ErrNoSpace
	}
	return nil
}

// Read copies up to max contiguous bytes starting at seq into dst, without
// advancing the base, stopping at the first gap (a byte never written) or
// at the logical end. It returns the number of bytes copied.
func (s *SeqBuf) Read(seq seqnum.Value, dst []byte, max int) int {
	if len(dst) < max {
		max = len(dst)
	}
	n := 0
	for n < max {
		cur := seq.Add(seqnum.Size(n))
		if !cur.LessThan(s.end) {
			break
		}
		off := s.offset(cur)
		if !s.filled[off] {
			break
		}
		dst[n] = s.ring[off]
		n++
	}
	return n
}

// Consume advances the base by n bytes, releasing them. It is the caller's
// responsibility to ensure those bytes have actually been filled (for a
// send buffer: acknowledged; for a receive buffer: delivered).
func (s *SeqBuf) Consume(n int) {
	for i := 0; i < n; i++ {
		off := s.offset(s.base.Add(seqnum.Size(i)))
		s.filled[off] = false
	}
	s.head = (s.head + n) % len(s.ring)
	s.base = s.base.Add(seqnum.Size(n))
}

// Available returns the number of contiguous bytes available starting at
// fromSeq, stopping at the first gap or at the logical end — the same rule
// Read uses to decide how far it may copy.
func (s *SeqBuf) Available(fromSeq seqnum.Value) int {
	n := 0
	for {
		cur := fromSeq.Add(seqnum.Size(n))
		if !cur.LessThan(s.end) {
			break
		}
		if n >= len(s.ring) {
			break
		}
		if !s.filled[s.offset(cur)] {
			break
		}
		n++
	}
	return n
}
