// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqnum defines the types and arithmetic for TCP sequence and
// window values. All comparisons are performed modulo 2^32, as required by
// RFC 793, section 3.3: "using modulo arithmetic, the sequence space is
// infinite in both directions."
package seqnum

// Value represents the value of a sequence number.
type Value uint32

// Size represents the size of a sequence number window, or of a span of
// bytes within a sequence-numbered stream.
type Size uint32

// SizeFromValue returns the difference between two sequence number values,
// interpreted as a non-negative span: to - from.
func SizeFromValue(from, to Value) Size {
	return Size(to - from)
}

// Add adds the given delta to the sequence value, wrapping around the
// 32-bit sequence space.
func (v Value) Add(delta Size) Value {
	return v + Value(delta)
}

// Size returns the span, interpreted as unsigned, between v and w (w - v).
func (v Value) Size(w Value) Size {
	return Size(w - v)
}

// LessThan checks if v is before w in the sequence space, accounting for
// wraparound, using the signed-comparison trick from RFC 1323, appendix:
// a < b iff (int32)(a-b) < 0.
func (v Value) LessThan(w Value) bool {
	return int32(v-w) < 0
}

// LessThanEq checks if v is before or equal to w in the sequence space.
func (v Value) LessThanEq(w Value) bool {
	return v == w || v.LessThan(w)
}

// InWindow checks if v lies in [first, first+size), the window acceptance
// test of RFC 793, section 3.3.
func (v Value) InWindow(first Value, size Size) bool {
	if size == 0 {
		return false
	}
	return first.Size(v) < size
}

// UpdateForward updates v such that it becomes v + delta.
func (v *Value) UpdateForward(delta Size) {
	*v += Value(delta)
}
